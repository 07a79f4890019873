package parse

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmaia/inbound-recon/constants"
	"github.com/tmaia/inbound-recon/internal/extract"
)

func TestRouterSignatures(t *testing.T) {
	r := NewRouter()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"espumalar header", "ESPUMALAR - Espumas e Derivados, Lda\nGuia de Remessa", FormatEspumalar},
		{"blocotex header", "Guia de transporte\nBLOCOTEX TEXTEIS SA", FormatBlocotex},
		{"unknown layout", "Guia de remessa\nFornecedor Desconhecido", FormatGeneric},
		{"case insensitive", "espumalar lda", FormatEspumalar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Route(tt.text))
		})
	}
}

func TestEspumalarParserRowsWithOrderRefs(t *testing.T) {
	text := `ESPUMALAR - Espumas e Derivados, Lda
Guia de Remessa GR 123/2026

ESP-10234  BLOCO ESPUMA D23 2000X1500  12,50 UN  ENC 2024/118
ESP-10940  PLACA ESPUMA D30 50MM  4,00 UN  ENC 2024/121
`
	p := NewEspumalarParser()
	out := p.Parse(text)
	require.Equal(t, Parsed, out.Kind)
	require.Len(t, out.Items, 2)

	assert.Equal(t, "ESP-10234", out.Items[0].Code)
	assert.True(t, out.Items[0].Qty.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "2024/118", out.Items[0].OrderRef)
	assert.Equal(t, "2024/121", out.Items[1].OrderRef)
}

func TestEspumalarParserEmptyOnForeignLayout(t *testing.T) {
	out := NewEspumalarParser().Parse("random free text without product rows")
	assert.Equal(t, ParsedEmpty, out.Kind)
}

func TestEspumalarParserKeepsDescriptionCasing(t *testing.T) {
	out := NewEspumalarParser().Parse("ESP-10234  Bloco Espuma D23 2000x1500  12,50 un  ENC 2024/118\n")
	require.Equal(t, Parsed, out.Kind)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Bloco Espuma D23 2000x1500", out.Items[0].Description, "printed casing survives")
	assert.Equal(t, "ESP-10234", out.Items[0].Code)
	assert.Equal(t, "UN", out.Items[0].Unit)
	assert.Equal(t, "2024/118", out.Items[0].OrderRef)
}

func TestBlocotexParserThreeLineBlocks(t *testing.T) {
	text := `BLOCOTEX TEXTEIS SA
V/Encomenda: 2026/044

BTX.4471
TECIDO JACQUARD 280CM CINZA
150,00 MT

BTX.4480
TECIDO LISO 140CM BRANCO
2.350,500 MT
`
	out := NewBlocotexParser().Parse(text)
	require.Equal(t, Parsed, out.Kind)
	require.Len(t, out.Items, 2)

	assert.Equal(t, "BTX.4471", out.Items[0].Code)
	assert.Equal(t, "TECIDO JACQUARD 280CM CINZA", out.Items[0].Description)
	assert.True(t, out.Items[0].Qty.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "2026/044", out.Items[0].OrderRef)
	assert.True(t, out.Items[1].Qty.Equal(decimal.RequireFromString("2350.5")))
}

func TestGenericParserSingleLineRows(t *testing.T) {
	text := `Fornecedor: Qualquer Lda
ART-5501 Chapa perfurada 2mm 34,00 UN
ART-5502 Perfil aluminio 6m 190,000
`
	out := NewGenericParser().Parse(text)
	require.Equal(t, Parsed, out.Kind)
	require.Len(t, out.Items, 2)
	assert.True(t, out.Items[0].Qty.Equal(decimal.NewFromInt(34)))
	assert.True(t, out.Items[1].Qty.Equal(decimal.NewFromInt(190000)))
}

func TestGenericParserTableWithHeader(t *testing.T) {
	text := "Código\tDescrição\tQuantidade\tUnidade\n" +
		"REF-001\tParafuso M8x40\t500,000\tUN\n" +
		"REF-002\tAnilha M8\t1.000,000\tUN\n"
	out := NewGenericParser().Parse(text)
	require.Equal(t, Parsed, out.Kind)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "REF-001", out.Items[0].Code)
	assert.Equal(t, "Parafuso M8x40", out.Items[0].Description)
	assert.True(t, out.Items[1].Qty.Equal(decimal.NewFromInt(1000)))
}

func TestGenericParserMultiLineBuffer(t *testing.T) {
	text := `REF-9001
Painel sandwich 40mm
lacado branco
25,00 UN

REF-9002
Remate de cumeeira
12 UN
`
	out := NewGenericParser().Parse(text)
	require.Equal(t, Parsed, out.Kind)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "REF-9001", out.Items[0].Code)
	assert.Equal(t, "Painel sandwich 40mm lacado branco", out.Items[0].Description)
	assert.True(t, out.Items[1].Qty.Equal(decimal.NewFromInt(12)))
}

func TestValidationRejectsPostalCodesAndAddresses(t *testing.T) {
	assert.False(t, PlausibleCode("3810-100"), "postal code is not a product code")
	assert.True(t, PlausibleCode("ESP-10234"))
	assert.False(t, PlausibleCode("ABCD"), "code needs a digit")

	assert.True(t, LooksLikeAddress("Rua da Industria, Lote 7"))
	assert.False(t, LooksLikeAddress("Bloco espuma D23"))

	assert.False(t, PlausibleQty(decimal.NewFromInt(3810100)), "postal-sized number is not a quantity")
	assert.False(t, AcceptItem(extract.Item{Description: "Zona Industrial de Aveiro", Qty: decimal.NewFromInt(3)}))
	assert.True(t, AcceptItem(extract.Item{Description: "Chapa perfurada", Qty: decimal.NewFromInt(3)}),
		"valid description and quantity acceptable without a code")
}

type stubParser struct {
	name string
	tag  string
	out  Outcome
}

func (s stubParser) Name() string        { return s.name }
func (s stubParser) FormatTag() string   { return s.tag }
func (s stubParser) Parse(string) Outcome { return s.out }

func TestDispatchRankedPriority(t *testing.T) {
	item := extract.Item{Code: "ESP-1", Description: "bloco espuma", Qty: decimal.NewFromInt(1)}

	t.Run("specific parser wins and stamps source", func(t *testing.T) {
		reg := NewRegistryWith([]Parser{
			stubParser{name: "espumalar", tag: FormatEspumalar, out: Outcome{Kind: Parsed, Items: []extract.Item{item}}},
			stubParser{name: "generic", out: Outcome{Kind: Parsed, Items: []extract.Item{{Code: "OTHER-1", Description: "wrong winner", Qty: decimal.NewFromInt(9)}}}},
		}, nil)
		items, source := reg.Dispatch("espumalar guia de remessa")
		require.Len(t, items, 1)
		assert.Equal(t, "parser:espumalar", source)
		assert.Equal(t, "parser:espumalar", items[0].Source)
		assert.Equal(t, "ESP-1", items[0].Code)
	})

	t.Run("empty specific parser falls through to generic", func(t *testing.T) {
		reg := NewRegistryWith([]Parser{
			stubParser{name: "espumalar", tag: FormatEspumalar, out: Outcome{Kind: ParsedEmpty}},
			stubParser{name: "generic", out: Outcome{Kind: Parsed, Items: []extract.Item{item}}},
		}, nil)
		items, source := reg.Dispatch("espumalar guia de remessa")
		require.Len(t, items, 1)
		assert.Equal(t, "parser:generic", source)
	})

	t.Run("all empty yields nothing", func(t *testing.T) {
		reg := NewRegistryWith([]Parser{
			stubParser{name: "generic", out: Outcome{Kind: ParsedEmpty}},
		}, nil)
		items, source := reg.Dispatch("anything")
		assert.Empty(t, items)
		assert.Empty(t, source)
	})

	t.Run("non-matching format tag is skipped", func(t *testing.T) {
		reg := NewRegistryWith([]Parser{
			stubParser{name: "blocotex", tag: FormatBlocotex, out: Outcome{Kind: Parsed, Items: []extract.Item{item}}},
		}, nil)
		items, _ := reg.Dispatch("plain generic document")
		assert.Empty(t, items, "format-bound parser must not see foreign documents")
	})
}

func TestExtractFieldsFuzzyLabels(t *testing.T) {
	text := `Fornecedr: Espumalar Lda
Encomenda nº: 2026/044
Data: 12/08/2026
NIF: PT 501234567
Guia de Remessa GR 123/2026
Total: 1.234,00 EUR
`
	f := ExtractFields(text)
	assert.Equal(t, "Espumalar Lda", f.SupplierName, "one OCR edit away from fornecedor still matches")
	assert.Equal(t, "2026/044", f.OrderNumber)
	assert.Equal(t, "2026-08-12", f.DocDate)
	assert.Equal(t, "501234567", f.SupplierTaxID)
	assert.Equal(t, "EUR", f.Currency)
	assert.Equal(t, string(constants.DocTypeDeliveryNote), f.DocKind)
}

func TestExtractFieldsToleratesValuelessLabels(t *testing.T) {
	// a label with nothing but whitespace after the colon carries no value
	text := "Encomenda: \nFornecedor: Acme Lda\nBTX-1001 PRODUTO 5,000 UN\n"
	f := ExtractFields(text)
	assert.Empty(t, f.OrderNumber, "no order value to pick up")
	assert.Equal(t, "Acme Lda", f.SupplierName)
}

func TestSniffDocKind(t *testing.T) {
	assert.Equal(t, constants.DocTypePurchaseOrder, SniffDocKind("NOTA DE ENCOMENDA Nº 55"))
	assert.Equal(t, constants.DocTypeDeliveryNote, SniffDocKind("GUIA DE REMESSA GR 1/2026"))
	assert.Equal(t, constants.DocTypeDeliveryNote, SniffDocKind("texto sem palavras chave"))
}
