package cache

import "errors"

// ErrNoLoader PriceCache 未配置 loader
var ErrNoLoader = errors.New("cache: no loader configured")
