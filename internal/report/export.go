package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vyvoz/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	ordersSheet  = "Заказы"
	summarySheet = "Итоги"
)

var exportHeaders = []string{"№", "Время", "Услуга", "Передача", "Адрес", "Статус", "Фото", "Стоимость, ₽", "Заказ"}

// Export сохраняет сводку в xlsx и возвращает путь к файлу.
func Export(s Summary, catalog models.Catalog, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ordersSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	cancelledStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#999999", Strike: true},
	})

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ordersSheet, cell, h)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	_ = f.SetCellStyle(ordersSheet, "A1", lastHeader, headerStyle)

	for i, o := range s.Orders {
		row := i + 2
		slot := o.TimeSlot
		if o.IsManual() {
			slot = "—"
		}
		values := []interface{}{
			i + 1,
			slot,
			catalog.Name(o.Product),
			models.TransferLabel(o.Transfer),
			o.Address,
			models.StatusLabel(o.Status),
			len(o.Photos),
			catalog.Price(o.Product),
			o.ID,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(ordersSheet, start, &values); err != nil {
			return "", fmt.Errorf("error writing row %d: %w", row, err)
		}
		if o.Status == models.StatusCancelled {
			end, _ := excelize.CoordinatesToCellName(len(exportHeaders), row)
			_ = f.SetCellStyle(ordersSheet, start, end, cancelledStyle)
		}
	}

	_ = f.SetColWidth(ordersSheet, "A", "B", 8)
	_ = f.SetColWidth(ordersSheet, "C", "D", 22)
	_ = f.SetColWidth(ordersSheet, "E", "E", 45)
	_ = f.SetColWidth(ordersSheet, "F", "F", 26)
	_ = f.SetColWidth(ordersSheet, "G", "H", 14)
	_ = f.SetColWidth(ordersSheet, "I", "I", 40)

	if err := writeTotals(f, s, catalog); err != nil {
		return "", err
	}

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	name := fmt.Sprintf("summary_%s.xlsx", strings.ReplaceAll(s.Date, ".", "-"))
	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func writeTotals(f *excelize.File, s Summary, catalog models.Catalog) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Дата", s.Date},
		{"Всего заявок", s.Total},
		{"Активных", s.Active},
		{"На рассмотрении", s.Manual},
		{"Ожидаемая выручка, ₽", s.Revenue},
		{},
		{"Время", "Заявок"},
	}
	for _, slot := range sortedKeys(s.BySlot) {
		rows = append(rows, []interface{}{slot, s.BySlot[slot]})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Услуга", "Заявок"})
	for _, id := range sortedKeys(s.ByProduct) {
		rows = append(rows, []interface{}{catalog.Name(id), s.ByProduct[id]})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Статус", "Заявок"})
	for _, st := range sortedKeys(s.ByStatus) {
		rows = append(rows, []interface{}{models.StatusLabel(st), s.ByStatus[st]})
	}

	for i := range rows {
		if len(rows[i]) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("error writing totals: %w", err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 28)
	return nil
}
