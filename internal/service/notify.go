package service

import (
	"fmt"

	"github.com/arturoeanton/go-product-lens/internal/domain"
)

// User-facing messages.
const (
	MessageNoMatch     = "No match found."
	MessageUnconfirmed = "Product looks similar, but I cannot confirm the exact model."

	ReplyAnalyzing      = "👁️ Analyzing your image..."
	ReplyGreeting       = "Hello! Send me a photo of a watch or product."
	ReplyNotSure        = "❌ I'm not sure what that is. Try a clearer photo."
	ReplyDownloadFailed = "❌ I couldn't download that image."
	ReplySystemError    = "⚠️ System Error. Please try again."
)

// Reply is a chat response: a text message and, for matches, an image to attach after it.
type Reply struct {
	Text     string
	ImageURL string
}

// FormatReply renders a match result for the chat relay.
func FormatReply(result domain.MatchResult) (Reply, error) {
	switch r := result.(type) {
	case domain.Found:
		text := fmt.Sprintf("✅ MATCH FOUND!\n\nProduct: %s\nPrice: %s\nConfidence: %d%%\n\n"+
			"⚠️ Note: This result is automated by AI. Occasional errors may occur.",
			r.Entry.Name, r.Entry.Price, ConfidencePercent(r.Score))
		return Reply{Text: text, ImageURL: r.Entry.ImageURL}, nil
	case domain.NotFound:
		return Reply{Text: ReplyNotSure}, nil
	case domain.Failed:
		return Reply{Text: ReplySystemError}, nil
	}
	return Reply{}, fmt.Errorf("unhandled match result %T", result)
}

// ConfidencePercent converts a similarity score to a whole percentage, truncated.
func ConfidencePercent(score float64) int {
	return int(score * 100)
}
