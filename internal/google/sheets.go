package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"vyvoz/internal/ledger"
	"vyvoz/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var ErrRowNotFound = errors.New("order row not found")

const cacheRefreshInterval = models.SheetsCacheTTL * time.Second

// SheetsService зеркалирует журнал заказов на лист Google Sheets:
// одна строка на заказ, столбцы как в заголовке журнала.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	logger        *zerolog.Logger

	rowCache map[string]int
	cacheMu  sync.RWMutex
	// append и поиск строки не должны пересекаться, иначе один заказ
	// может попасть в таблицу дважды
	writeMu sync.Mutex
}

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsService, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newSheetsService(srv, spreadsheetID, sheetName, logger), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID, sheetName string, logger *zerolog.Logger) *SheetsService {
	if sheetName == "" {
		sheetName = "Orders"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
		rowCache:      make(map[string]int),
	}
}

// Start прогревает кэш строк и обновляет его раз в час.
func (s *SheetsService) Start(ctx context.Context) {
	refresh := func() {
		cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.WarmUpCache(cctx); err != nil {
			s.logger.Warn().Err(err).Msg("sheets cache warm up failed")
		}
	}
	refresh()

	ticker := time.NewTicker(cacheRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func (s *SheetsService) rng(cells string) string {
	return fmt.Sprintf("%s!%s", s.sheetName, cells)
}

// TestConnection проверяет подключение к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// GetServiceAccountEmail возвращает email сервисного аккаунта
func GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// EnsureHeader пишет заголовок, если первая строка пустая.
func (s *SheetsService) EnsureHeader(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A1:K1")).Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	header := make([]interface{}, 0, len(ledger.Header))
	for _, h := range ledger.Header {
		header = append(header, h)
	}
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rng("A1:K1"), &sheets.ValueRange{
		Values: [][]interface{}{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// WarmUpCache заново читает столбец с номерами заказов.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		if id := cellString(row); id != "" && id != ledger.Header[0] {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// AppendOrder добавляет строку заказа в конец листа.
func (s *SheetsService) AppendOrder(ctx context.Context, order *models.Order) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.rng("A:A"), &sheets.ValueRange{
		Values: [][]interface{}{orderRowValues(order)},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}

	if resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(order.ID, row)
		}
	}
	return nil
}

// UpsertOrder обновляет строку заказа или добавляет новую.
func (s *SheetsService) UpsertOrder(ctx context.Context, order *models.Order) error {
	if order == nil {
		return errors.New("order is nil")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rowIdx, err := s.FindOrderRow(ctx, order.ID)
	if errors.Is(err, ErrRowNotFound) {
		return s.AppendOrder(ctx, order)
	}
	if err != nil {
		return err
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.rng(fmt.Sprintf("A%d:K%d", rowIdx, rowIdx)), &sheets.ValueRange{
		Values: [][]interface{}{orderRowValues(order)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpdateOrderStatus меняет статус (столбец G) и время записи (столбец K).
func (s *SheetsService) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rowIdx, err := s.FindOrderRow(ctx, orderID)
	if err != nil {
		return err
	}

	data := []*sheets.ValueRange{
		{Range: s.rng(fmt.Sprintf("G%d", rowIdx)), Values: [][]interface{}{{status}}},
		{Range: s.rng(fmt.Sprintf("K%d", rowIdx)), Values: [][]interface{}{{time.Now().UTC().Format(time.RFC3339)}}},
	}
	_, err = s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	return err
}

// FindOrderRow ищет номер строки (с единицы) заказа, сначала в кэше.
func (s *SheetsService) FindOrderRow(ctx context.Context, orderID string) (int, error) {
	if orderID == "" {
		return 0, errors.New("order id is required")
	}

	if row, ok := s.getCachedRow(orderID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if cellString(row) == orderID {
			s.setCachedRow(orderID, i+1)
			return i + 1, nil
		}
	}
	return 0, ErrRowNotFound
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[string]int)
}

func orderRowValues(o *models.Order) []interface{} {
	return []interface{}{
		o.ID,
		o.UserID,
		o.Product,
		o.Address,
		o.Date,
		o.TimeSlot,
		o.Status,
		o.Transfer,
		strings.Join(o.Photos, "|"),
		o.PaymentProof,
		o.RecordedAt.UTC().Format(time.RFC3339),
	}
}

func cellString(row []interface{}) string {
	if len(row) == 0 {
		return ""
	}
	switch v := row[0].(type) {
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// rowFromRange достаёт номер строки из "Orders!A12:K12".
func rowFromRange(r string) (int, bool) {
	if i := strings.LastIndex(r, "!"); i >= 0 {
		r = r[i+1:]
	}
	if i := strings.Index(r, ":"); i >= 0 {
		r = r[:i]
	}
	r = strings.TrimLeft(r, "ABCDEFGHIJKLMNOPQRSTUVWXYZ$")
	var row int
	if _, err := fmt.Sscanf(r, "%d", &row); err != nil || row <= 0 {
		return 0, false
	}
	return row, true
}
