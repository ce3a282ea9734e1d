package wget

import (
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// linkAttrByTag names the attribute that carries a reference URL for each
// element tag the extractor cares about: a/@href, link/@href, img/@src,
// script/@src, source/@src, video/@src.
var linkAttrByTag = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"source": "src",
	"video":  "src",
}

// extractLinksFromFile reads a local HTML file and returns the absolute URLs
// gleaned from it, resolved against baseURL with fragments stripped. A
// streaming tokenizer is used rather than a full DOM parse, since none of
// the attributes above need tree context to resolve.
func extractLinksFromFile(path, baseURL string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	var links []string
	z := html.NewTokenizer(f)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return links, nil
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		attrName, wanted := linkAttrByTag[string(name)]
		if !wanted || !hasAttr {
			continue
		}
		for {
			key, val, more := z.TagAttr()
			if string(key) == attrName {
				if link := resolveLink(base, string(val)); link != "" {
					links = append(links, link)
				}
			}
			if !more {
				break
			}
		}
	}
}

// resolveLink resolves a raw href/src value against base, stripping the
// fragment, and filters out javascript:/mailto:/data: and non-http(s) schemes.
func resolveLink(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return ""
	}
	lowered := strings.ToLower(raw)
	if strings.HasPrefix(lowered, "javascript:") || strings.HasPrefix(lowered, "mailto:") || strings.HasPrefix(lowered, "data:") {
		return ""
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	absolute := base.ResolveReference(ref)
	absolute.Fragment = ""

	if absolute.Scheme != "http" && absolute.Scheme != "https" {
		return ""
	}
	return absolute.String()
}
