package render

import "strings"

// Markdown renders markdown content for terminal display.
func Markdown(content string, opts Options) (string, error) {
	renderer, err := globalPool.get(opts)
	if err != nil {
		return "", err
	}
	defer globalPool.put(opts, renderer)

	return renderer.Render(content)
}

// Reply renders an assistant reply. A reply that fails to render, such as
// a partially streamed one, is shown as plain text instead. Rendered
// replies are memoized per options.
func Reply(content string, opts Options) string {
	if strings.TrimSpace(content) == "" {
		return content
	}
	if out, ok := globalMemo.lookup(opts, content); ok {
		return out
	}

	out, err := Markdown(content, opts)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	globalMemo.remember(opts, content, out)
	return out
}
