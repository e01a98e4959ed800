package storage

import "net/url"

// sqlcipherDSN builds the URI the sqlcipher driver opens. The path is
// percent-encoded except for its separators, so '?', '#' and '%' in a
// directory name cannot end the filename early.
func sqlcipherDSN(path, key string) string {
	escaped := (&url.URL{Path: path}).EscapedPath()
	return "file:" + escaped +
		"?_pragma_key=" + url.QueryEscape(key) +
		"&_pragma_cipher_page_size=4096&_busy_timeout=5000&_journal_mode=WAL"
}
