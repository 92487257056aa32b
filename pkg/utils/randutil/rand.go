package randutil

import (
	"math/rand"
	"sync"
	"time"
)

var (
	mu  sync.Mutex
	rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func Uint64n() uint64 {
	mu.Lock()
	defer mu.Unlock()
	return rnd.Uint64()
}
