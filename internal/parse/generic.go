package parse

import (
	"regexp"
	"strings"

	"github.com/tmaia/inbound-recon/internal/extract"
	"github.com/tmaia/inbound-recon/internal/numfmt"
)

// GenericParser is the heuristic fallback for unrecognized layouts. It runs
// three ordered strategies: single-line CODE DESCRIPTION QTY [UNIT] rows,
// table rows from the document's native tabular regions, and a multi-line
// buffer for suppliers that split code, description and quantity across
// consecutive lines.
type GenericParser struct{}

func NewGenericParser() *GenericParser { return &GenericParser{} }

func (g *GenericParser) Name() string      { return "generic" }
func (g *GenericParser) FormatTag() string { return "" }

func (g *GenericParser) Parse(text string) Outcome {
	items := parseLineRows(text)
	if len(items) == 0 {
		items = parseTableRows(text)
	}
	if len(items) == 0 {
		items = parseMultiLine(text)
	}
	if len(items) == 0 {
		return Outcome{Kind: ParsedEmpty}
	}
	return Outcome{Kind: Parsed, Items: extract.Dedupe(items)}
}

// reLineRow matches a full product row on one line:
// CODE  DESCRIPTION  QTY [UNIT]
var reLineRow = regexp.MustCompile(
	`^\s*([A-Za-z0-9][A-Za-z0-9\-\./]{3,})\s+(.{4,}?)\s+(\d{1,3}(?:[.,]\d{3})*(?:,\d{1,2})?|\d+(?:[.,]\d+)?)\s*([A-Za-z]{1,4})?\s*$`)

// parseLineRows is strategy 1: one regex pass over every line.
func parseLineRows(text string) []extract.Item {
	var items []extract.Item
	for _, line := range strings.Split(text, "\n") {
		m := reLineRow.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		code, desc, qtyTok, unit := m[1], m[2], m[3], m[4]
		if !PlausibleCode(code) {
			continue
		}
		if unit != "" && !IsUnitWord(unit) {
			// trailing token was not a unit; treat it as part of nothing and
			// drop the row rather than mis-parse
			continue
		}
		it := extract.Item{
			Code:        code,
			Description: desc,
			Qty:         numfmt.NormalizeQty(qtyTok),
			Unit:        unit,
		}
		if AcceptItem(it) {
			items = append(items, it)
		}
	}
	return items
}

// parseTableRows is strategy 2: tab-delimited rows as produced by native
// table regions (spreadsheets, CSV, structured PDF tables). A header row with
// recognizable column names fixes the column mapping; otherwise the columns
// are inferred per row.
func parseTableRows(text string) []extract.Item {
	lines := strings.Split(text, "\n")
	var rows [][]string
	for _, line := range lines {
		if strings.Count(line, "\t") < 1 {
			continue
		}
		cells := strings.Split(line, "\t")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		rows = append(rows, cells)
	}
	if len(rows) < 2 {
		return nil
	}

	cols, hasHeader := detectColumns(rows[0])
	body := rows
	if hasHeader {
		body = rows[1:]
	}

	var items []extract.Item
	for _, row := range body {
		var it extract.Item
		if hasHeader {
			it = itemFromMappedRow(row, cols)
		} else {
			it = itemFromLooseRow(row)
		}
		if AcceptItem(it) {
			items = append(items, it)
		}
	}
	return items
}

// columnMap holds detected column indexes; -1 means absent.
type columnMap struct {
	code, desc, qty, unit, order int
}

// header synonyms across PT/ES/FR/EN layouts
var (
	codeHeaders  = []string{"codigo", "código", "code", "referencia", "referência", "ref", "artigo", "articulo"}
	descHeaders  = []string{"descricao", "descrição", "designacao", "designação", "description", "descripcion", "désignation"}
	qtyHeaders   = []string{"quantidade", "qtd", "qty", "cantidad", "quantite", "quantité", "quant"}
	unitHeaders  = []string{"unidade", "unit", "un", "unidad", "unité", "um"}
	orderHeaders = []string{"encomenda", "pedido", "order", "commande", "requisicao", "requisição"}
)

// detectColumns fuzzy-matches header cells against the synonym tables.
func detectColumns(header []string) (columnMap, bool) {
	cols := columnMap{code: -1, desc: -1, qty: -1, unit: -1, order: -1}
	found := 0
	for i, cell := range header {
		switch {
		case cols.code == -1 && matchesAnyKey(cell, codeHeaders):
			cols.code = i
			found++
		case cols.desc == -1 && matchesAnyKey(cell, descHeaders):
			cols.desc = i
			found++
		case cols.qty == -1 && matchesAnyKey(cell, qtyHeaders):
			cols.qty = i
			found++
		case cols.unit == -1 && matchesAnyKey(cell, unitHeaders):
			cols.unit = i
			found++
		case cols.order == -1 && matchesAnyKey(cell, orderHeaders):
			cols.order = i
			found++
		}
	}
	// a usable header names at least a description or code column and a qty
	return cols, found >= 2 && cols.qty != -1 && (cols.desc != -1 || cols.code != -1)
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func itemFromMappedRow(row []string, cols columnMap) extract.Item {
	return extract.Item{
		Code:        cellAt(row, cols.code),
		Description: cellAt(row, cols.desc),
		Qty:         numfmt.NormalizeQty(cellAt(row, cols.qty)),
		Unit:        cellAt(row, cols.unit),
		OrderRef:    cellAt(row, cols.order),
	}
}

// itemFromLooseRow infers the columns of a headerless row: the first
// code-shaped cell, the last numeric cell, the longest remaining cell, and
// any short unit word.
func itemFromLooseRow(row []string) extract.Item {
	var it extract.Item
	qtyIdx := -1
	for i := len(row) - 1; i >= 0; i-- {
		if q := numfmt.NormalizeQty(row[i]); PlausibleQty(q) {
			it.Qty = q
			qtyIdx = i
			break
		}
	}
	for i, cell := range row {
		if i == qtyIdx {
			continue
		}
		if it.Code == "" && PlausibleCode(cell) {
			it.Code = cell
			continue
		}
		if it.Unit == "" && IsUnitWord(cell) {
			it.Unit = cell
			continue
		}
		if len(cell) > len(it.Description) {
			it.Description = cell
		}
	}
	return it
}
