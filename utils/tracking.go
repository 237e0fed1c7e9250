package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// GenerateOpenPixelURL builds the tracking pixel URL that reports an
// email_open event for the lead.
func GenerateOpenPixelURL(baseURL, leadID, messageID string) string {
	token := generateUniqueToken(leadID + messageID)
	return fmt.Sprintf("%s/track/open/%s/%s", baseURL, leadID, token)
}

// GenerateClickTrackURL builds a redirecting URL that reports an
// email_click event before forwarding to the original destination.
func GenerateClickTrackURL(baseURL, leadID, messageID, originalURL string) string {
	token := generateUniqueToken(leadID + messageID)
	encodedURL := url.QueryEscape(originalURL)
	return fmt.Sprintf("%s/track/click/%s/%s?url=%s", baseURL, leadID, token, encodedURL)
}

// InjectTracking rewrites links for click tracking and appends the open
// pixel to an outbound email body.
func InjectTracking(htmlContent, baseURL, leadID, messageID string) string {
	pixelURL := GenerateOpenPixelURL(baseURL, leadID, messageID)
	trackingPixel := fmt.Sprintf(`<img src="%s" alt="" width="1" height="1" style="display:none">`, pixelURL)

	modifiedHTML := injectClickTracking(htmlContent, baseURL, leadID, messageID)

	return modifiedHTML + trackingPixel
}

func injectClickTracking(html, baseURL, leadID, messageID string) string {
	startTag := "<a href=\""
	endTag := "\""
	offset := 0

	for {
		startIdx := strings.Index(html[offset:], startTag)
		if startIdx == -1 {
			break
		}
		startIdx += offset + len(startTag)

		endIdx := strings.Index(html[startIdx:], endTag)
		if endIdx == -1 {
			break
		}
		endIdx += startIdx

		originalURL := html[startIdx:endIdx]
		trackedURL := GenerateClickTrackURL(baseURL, leadID, messageID, originalURL)

		html = html[:startIdx] + trackedURL + html[endIdx:]
		offset = startIdx + len(trackedURL)
	}

	return html
}

func generateUniqueToken(seed string) string {
	hash := sha256.Sum256([]byte(uuid.New().String() + seed))
	return base64.URLEncoding.EncodeToString(hash[:])[:20]
}
