package render

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// maxMemoEntries bounds the rendered reply memo
const maxMemoEntries = 256

type memoKey struct {
	opts    Options
	content string
}

// replyMemo remembers rendered replies. The chat view redraws the whole
// conversation on every stream chunk while only the trailing reply changes,
// so finished replies stay hot and partial ones age out first.
type replyMemo struct {
	cache *lru.Cache[memoKey, string]
}

var globalMemo = newReplyMemo()

func newReplyMemo() *replyMemo {
	cache, err := lru.New[memoKey, string](maxMemoEntries)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &replyMemo{cache: cache}
}

func (m *replyMemo) lookup(opts Options, content string) (string, bool) {
	return m.cache.Get(memoKey{opts, content})
}

func (m *replyMemo) remember(opts Options, content, out string) {
	m.cache.Add(memoKey{opts, content}, out)
}

func (m *replyMemo) reset() {
	m.cache.Purge()
}

func (m *replyMemo) len() int {
	return m.cache.Len()
}
