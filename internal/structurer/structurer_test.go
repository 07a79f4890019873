package structurer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmaia/inbound-recon/internal/acquire"
)

type mockProvider struct {
	name    string
	reply   string
	err     error
	calls   int
	lastMsg string
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) Complete(_ context.Context, _, user string) (string, error) {
	m.calls++
	m.lastMsg = user
	return m.reply, m.err
}

const validReply = `{"supplier":"Espumalar Lda","supplier_nif":"501234567","order_number":"2026/044",
"products":[{"code":"ESP-1","description":"Bloco espuma D23","quantity":"12.5","unit":"UN"}]}`

func TestChainPrimaryWins(t *testing.T) {
	primary := &mockProvider{name: "primary", reply: validReply}
	secondary := &mockProvider{name: "secondary", reply: validReply}
	fallback := &mockProvider{name: "fallback", reply: validReply}

	s := New(primary, secondary, fallback, 0, nil)
	res, err := s.Structure(context.Background(), "ESP-1 Bloco espuma D23 12,5 UN")
	require.NoError(t, err)

	assert.Equal(t, "primary", res.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
	assert.Zero(t, fallback.calls)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "llm", res.Items[0].Source)
	assert.True(t, res.Items[0].Qty.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "501234567", res.SupplierNIF)
}

func TestChainSecondaryOnlyOnRateLimit(t *testing.T) {
	t.Run("rate limit promotes secondary", func(t *testing.T) {
		primary := &mockProvider{name: "primary", err: fmt.Errorf("primary: %w", ErrRateLimited)}
		secondary := &mockProvider{name: "secondary", reply: validReply}
		fallback := &mockProvider{name: "fallback", reply: validReply}

		s := New(primary, secondary, fallback, 0, nil)
		res, err := s.Structure(context.Background(), "some text")
		require.NoError(t, err)
		assert.Equal(t, "secondary", res.Provider)
		assert.Equal(t, 1, secondary.calls)
		assert.Zero(t, fallback.calls)
	})

	t.Run("other failures skip secondary and hit fallback", func(t *testing.T) {
		primary := &mockProvider{name: "primary", err: errors.New("boom")}
		secondary := &mockProvider{name: "secondary", reply: validReply}
		fallback := &mockProvider{name: "fallback", reply: validReply}

		s := New(primary, secondary, fallback, 0, nil)
		res, err := s.Structure(context.Background(), "some text")
		require.NoError(t, err)
		assert.Equal(t, "fallback", res.Provider)
		assert.Zero(t, secondary.calls, "secondary is reserved for rate-limit signals")
	})

	t.Run("whole chain down surfaces the error", func(t *testing.T) {
		primary := &mockProvider{name: "primary", err: errors.New("down")}
		fallback := &mockProvider{name: "fallback", err: errors.New("also down")}

		s := New(primary, nil, fallback, 0, nil)
		_, err := s.Structure(context.Background(), "some text")
		require.Error(t, err)
	})
}

func TestLenientSanitizeRepairsNearMissReply(t *testing.T) {
	// fenced, synonym keys, numeric quantity, stray key
	reply := "```json\n" + `{"fornecedor":"Blocotex SA","items":[
{"sku":"BTX.4471","descricao":"Tecido jacquard","qty":150,"unit":"MT","note":"x"}],"total":"990"}` + "\n```"
	primary := &mockProvider{name: "primary", reply: reply}

	s := New(primary, nil, nil, 0, nil)
	res, err := s.Structure(context.Background(), "texto")
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "BTX.4471", res.Items[0].Code)
	assert.Equal(t, "Tecido jacquard", res.Items[0].Description)
	assert.True(t, res.Items[0].Qty.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "Blocotex SA", res.Supplier)
}

func TestInvalidReplyIsAnError(t *testing.T) {
	primary := &mockProvider{name: "primary", reply: `{"products":"not an array"}`}
	s := New(primary, nil, nil, 0, nil)
	_, err := s.Structure(context.Background(), "texto")
	require.Error(t, err)
}

func TestMultiPageFragmentsAreDeduplicated(t *testing.T) {
	// the same continued-table row appears on both pages
	primary := &mockProvider{name: "primary", reply: validReply}
	s := New(primary, nil, nil, 0, nil)

	text := "page one text\n" + acquire.PageMarker + "\npage two text"
	res, err := s.Structure(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, 2, primary.calls, "each page fragment is submitted independently")
	assert.Len(t, res.Items, 1, "repeated rows across pages collapse to one")
}

func TestPrefilterDropsRepeatedPageHeaders(t *testing.T) {
	header := "ESPUMALAR LDA - Zona Industrial"
	text := header + "\nGuia de Remessa\nrow one\n" +
		acquire.PageMarker + "\n" + header + "\nrow two"

	got := PrefilterText(text, 0)
	assert.Equal(t, 1, strings.Count(got, header), "letterhead survives only once")
	assert.Contains(t, got, "row one")
	assert.Contains(t, got, "row two")
	assert.Contains(t, got, acquire.PageMarker, "page structure is preserved")
}

func TestPrefilterTruncatesToBudget(t *testing.T) {
	text := strings.Repeat("a", 500)
	assert.Len(t, PrefilterText(text, 100), 100)
}

func TestPrefilterTruncatesOnRuneBoundary(t *testing.T) {
	// ç is two bytes; an odd budget lands mid-rune and must back off
	text := strings.Repeat("ç", 50)
	got := PrefilterText(text, 25)
	assert.True(t, utf8.ValidString(got), "truncation must not split a rune")
	assert.Equal(t, 24, len(got))
}
