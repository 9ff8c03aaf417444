package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-product-lens/internal/domain"
)

func TestFormatReply(t *testing.T) {
	found := domain.Found{
		Entry: domain.CatalogEntry{Name: "Seiko 5", Price: "$250", ImageURL: "http://media.test/media/Seiko5.png"},
		Score: 0.876,
	}
	reply, err := FormatReply(found)
	require.NoError(t, err)
	assert.Equal(t, "✅ MATCH FOUND!\n\nProduct: Seiko 5\nPrice: $250\nConfidence: 87%\n\n"+
		"⚠️ Note: This result is automated by AI. Occasional errors may occur.", reply.Text)
	assert.Equal(t, "http://media.test/media/Seiko5.png", reply.ImageURL)

	reply, err = FormatReply(domain.NotFound{Guess: &domain.BestGuess{Name: "Seiko 5", Confidence: 0.5}})
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: ReplyNotSure}, reply)

	reply, err = FormatReply(domain.Failed{Reason: "catalog error"})
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: ReplySystemError}, reply)

	_, err = FormatReply(nil)
	assert.Error(t, err)
}

func TestConfidencePercent(t *testing.T) {
	assert.Equal(t, 65, ConfidencePercent(0.65))
	assert.Equal(t, 99, ConfidencePercent(0.999))
	assert.Equal(t, 100, ConfidencePercent(1.0))
}
