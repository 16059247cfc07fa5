package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"vyvoz/internal/models"

	"github.com/rs/zerolog"
)

const (
	photosSeparator = "|"
	tailChunkSize   = 4096
)

var fieldSanitizer = strings.NewReplacer("\r", " ", "\n", " ")

// FileStore журнал заказов в CSV-файле. Запись сериализована мьютексом,
// каждая запись дописывается одной строкой и сбрасывается на диск.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger *zerolog.Logger
}

func NewFileStore(path string, logger *zerolog.Logger) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "ledger").Str("path", path).Logger()
	return &FileStore{path: path, logger: &l}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

// Append дописывает запись в журнал. Незавершённая последняя строка,
// оставшаяся от прерванной записи, предварительно отрезается.
func (s *FileStore) Append(ctx context.Context, order models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if order.ID == "" {
		return errors.New("order id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat ledger: %w", err)
	}

	offset := info.Size()
	if offset > 0 {
		offset, err = s.repairTail(f, offset)
		if err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if offset == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("failed to encode header: %w", err)
		}
	}
	if err := w.Write(encodeRecord(order)); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	if _, err := f.WriteAt(buf.Bytes(), offset); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger: %w", err)
	}

	s.logger.Debug().
		Str("order_id", order.ID).
		Str("status", order.Status).
		Str("date", order.Date).
		Str("time_slot", order.TimeSlot).
		Msg("Ledger entry appended")
	return nil
}

// repairTail отрезает хвост после последнего перевода строки.
func (s *FileStore) repairTail(f *os.File, size int64) (int64, error) {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return 0, fmt.Errorf("failed to read ledger tail: %w", err)
	}
	if last[0] == '\n' {
		return size, nil
	}

	end := size
	buf := make([]byte, tailChunkSize)
	for end > 0 {
		start := end - tailChunkSize
		if start < 0 {
			start = 0
		}
		chunk := buf[:end-start]
		if _, err := f.ReadAt(chunk, start); err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("failed to read ledger tail: %w", err)
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			end = start + int64(i) + 1
			break
		}
		end = start
	}

	if err := f.Truncate(end); err != nil {
		return 0, fmt.Errorf("failed to truncate partial ledger line: %w", err)
	}
	s.logger.Warn().Int64("dropped_bytes", size-end).Msg("Partial ledger line truncated")
	return end, nil
}

// Entries читает все полные записи журнала в порядке записи.
func (s *FileStore) Entries(ctx context.Context) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[:i+1]
	} else {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read ledger header: %w", err)
	}
	columns := columnIndex(header)

	var entries []models.Order
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := r.FieldPos(0)
			s.logger.Warn().Err(err).Int("line", line).Msg("Skipping malformed ledger line")
			continue
		}

		order, ok := decodeRecord(record, columns)
		if !ok {
			line, _ := r.FieldPos(0)
			s.logger.Warn().Int("line", line).Msg("Skipping ledger line without order id")
			continue
		}
		entries = append(entries, order)
	}
	return entries, nil
}

func (s *FileStore) Orders(ctx context.Context, date string) ([]models.Order, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByDate(Fold(entries), date), nil
}

func (s *FileStore) Order(ctx context.Context, id string) (*models.Order, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return Latest(entries, id)
}

func (s *FileStore) Occupancy(ctx context.Context, date string) (map[string]int, error) {
	orders, err := s.Orders(ctx, date)
	if err != nil {
		return nil, err
	}
	return Occupancy(orders, date), nil
}

func (s *FileStore) Close() error {
	return nil
}

func encodeRecord(o models.Order) []string {
	photos := make([]string, 0, len(o.Photos))
	for _, p := range o.Photos {
		photos = append(photos, strings.ReplaceAll(p, photosSeparator, ""))
	}

	return []string{
		o.ID,
		strconv.FormatInt(o.UserID, 10),
		fieldSanitizer.Replace(o.Product),
		fieldSanitizer.Replace(o.Address),
		o.Date,
		o.TimeSlot,
		o.Status,
		o.Transfer,
		strings.Join(photos, photosSeparator),
		o.PaymentProof,
		o.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	return idx
}

func decodeRecord(record []string, columns map[string]int) (models.Order, bool) {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	o := models.Order{
		ID:           field("order_id"),
		Product:      field("product"),
		Address:      field("address"),
		Date:         field("date"),
		TimeSlot:     field("time_slot"),
		Status:       field("status"),
		Transfer:     field("transfer"),
		PaymentProof: field("payment_proof"),
	}
	if o.ID == "" {
		return models.Order{}, false
	}

	o.UserID, _ = strconv.ParseInt(field("user"), 10, 64)
	if photos := field("photos"); photos != "" {
		o.Photos = strings.Split(photos, photosSeparator)
	}
	if ts := field("recorded_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			o.RecordedAt = t
		}
	}
	return o, true
}
