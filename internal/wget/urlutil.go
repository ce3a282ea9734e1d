package wget

import (
	"net/url"
	"os"
	"path"
	"strings"
)

// normalizeURL lowercases scheme and host, defaults an empty path to "/",
// strips the fragment, and preserves the query.
func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// sameHost compares two URLs' lowercased authorities (host[:port]).
func sameHost(rawURL, host string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// basePathForNoParent returns the directory portion of the URL's path, with
// a trailing slash, used as the anchor for -np filtering.
func basePathForNoParent(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	if !strings.HasSuffix(p, "/") {
		if idx := strings.LastIndex(p, "/"); idx >= 0 {
			p = p[:idx+1]
		} else {
			p = "/"
		}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// pathWithinBase reports whether rawURL's path is a prefix-descendant of base.
func pathWithinBase(rawURL, base string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	return strings.HasPrefix(p, base)
}

// safeFilenameFromURL returns the URL path's last non-empty, URL-decoded
// component, falling back to "index.html". "." and ".." are never returned.
func safeFilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "index.html"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "index.html"
	}
	decoded, err := url.QueryUnescape(name)
	if err != nil {
		return name
	}
	if decoded == "." || decoded == ".." || decoded == "" {
		return "index.html"
	}
	return decoded
}

// recursiveOutputPath produces root_dir/host/<decoded path>, appending
// suggested (or "index.html") when the URL path ends in "/".
func recursiveOutputPath(rawURL, rootDir, suggested string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Join(rootDir, "unknown-host", "index.html")
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	if strings.HasSuffix(p, "/") {
		leaf := suggested
		if leaf == "" {
			leaf = "index.html"
		}
		p = p + leaf
	}
	trimmed := strings.TrimPrefix(p, "/")
	decoded, err := url.PathUnescape(trimmed)
	if err != nil {
		decoded = trimmed
	}
	decoded = filepathFromSlash(decoded)
	return path.Join(rootDir, strings.ToLower(u.Host), decoded)
}

// filepathFromSlash converts URL-style "/" separators to the host OS's
// separator, mirroring the original tool's os.sep substitution.
func filepathFromSlash(p string) string {
	if os.PathSeparator == '/' {
		return p
	}
	return strings.ReplaceAll(p, "/", string(os.PathSeparator))
}

// tempDownloadPath returns outputPath + ".par".
func tempDownloadPath(outputPath string) string {
	return outputPath + ".par"
}

// partsPathFor returns tempPath + ".parts".
func partsPathFor(tempPath string) string {
	return tempPath + ".parts"
}

// isHTMLContent reports whether contentType or outputPath's suffix indicate HTML.
func isHTMLContent(contentType, outputPath string) bool {
	if contentType != "" && strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	lower := strings.ToLower(outputPath)
	if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
		return true
	}
	return path.Base(lower) == "index.html"
}
