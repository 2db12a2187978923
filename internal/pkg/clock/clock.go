package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を返す。サービスとワーカーに注入してテストで固定できるようにする
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem は time.Now を UTC で返す Clock を作成する
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Fake はテスト用の手動で進める Clock
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake は t で固定された Clock を作成する
func NewFake(t time.Time) *Fake {
	return &Fake{now: t.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance は時刻を d だけ進める
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set は時刻を t に設定する
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}
