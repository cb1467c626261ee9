package memory

import "context"

// Feed рассылает сигнал об изменении уведомлений подписчикам владельца
type Feed struct {
	s *Store
}

func (f *Feed) Subscribe(ctx context.Context, ownerUID string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	f.s.mu.Lock()
	subs, ok := f.s.subscribers[ownerUID]
	if !ok {
		subs = make(map[chan struct{}]struct{})
		f.s.subscribers[ownerUID] = subs
	}
	subs[ch] = struct{}{}
	f.s.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.s.mu.Lock()
		delete(f.s.subscribers[ownerUID], ch)
		close(ch)
		f.s.mu.Unlock()
	}()

	return ch, nil
}

// notifyLocked вызывается под s.mu. Сигналы схлопываются: если подписчик
// ещё не прочитал предыдущий, новый не нужен
func (s *Store) notifyLocked(ownerUID string) {
	for ch := range s.subscribers[ownerUID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
