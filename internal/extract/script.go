package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapevault/scrapevault/internal/models"
)

var initialStatePattern = regexp.MustCompile(`window\.(__INITIAL_STATE__|__NUXT__)\s*=\s*(\{.*\});?`)

// sniffScripts scans every <script> body for a
// window.__INITIAL_STATE__/__NUXT__ assignment and, if the embedded
// object parses as JSON, emits it as a json Resource.
func sniffScripts(doc *goquery.Document) []*models.Resource {
	var out []*models.Resource

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		match := initialStatePattern.FindStringSubmatch(s.Text())
		if match == nil {
			return
		}
		raw := strings.TrimSuffix(strings.TrimSpace(match[2]), ";")

		var probe any
		if err := json.Unmarshal([]byte(raw), &probe); err != nil {
			return
		}

		var pretty strings.Builder
		encoder := json.NewEncoder(&pretty)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(probe); err != nil {
			return
		}

		out = append(out, &models.Resource{
			Type:    models.ResourceJSON,
			Content: strings.TrimRight(pretty.String(), "\n"),
			Metadata: map[string]any{
				"source": "script_sniffing",
			},
		})
	})

	return out
}
