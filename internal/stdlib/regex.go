package stdlib

import (
	"regexp"
	"sync"
)

// compileCached memoizes regexp.Compile for sub()'s pattern argument, which
// is frequently re-evaluated across scatter iterations. This is the one
// place stdlib reaches for the standard library rather than a pack
// dependency: no example repo exercises a third-party regex engine, and
// Go's RE2-based regexp already covers WDL's sub() semantics.
var (
	cacheMu sync.Mutex
	cache   = map[string]*regexp.Regexp{}
)

func compileCached(pattern string) *regexp.Regexp {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if re, ok := cache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		cache[pattern] = nil
		return nil
	}
	cache[pattern] = re
	return re
}
