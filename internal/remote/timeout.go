package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds every remote call when no other limit is configured
const DefaultTimeout = 15 * time.Second

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout bounds every call on next. A call still running when the
// limit passes is abandoned and reported as ErrUnavailable; its dest must
// not be read afterwards.
func WithTimeout(next Store, timeout time.Duration) Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &timeoutStore{next: next, timeout: timeout}
}

func (s *timeoutStore) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrUnavailable) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}

func (s *timeoutStore) SelectWhere(ctx context.Context, table string, q Query, dest interface{}) error {
	return s.call(ctx, func(ctx context.Context) error { return s.next.SelectWhere(ctx, table, q, dest) })
}

func (s *timeoutStore) SelectOne(ctx context.Context, table string, q Query, dest interface{}) error {
	return s.call(ctx, func(ctx context.Context) error { return s.next.SelectOne(ctx, table, q, dest) })
}

func (s *timeoutStore) Insert(ctx context.Context, table string, record interface{}) error {
	return s.call(ctx, func(ctx context.Context) error { return s.next.Insert(ctx, table, record) })
}

func (s *timeoutStore) Update(ctx context.Context, table string, id uint, fields map[string]interface{}) error {
	return s.call(ctx, func(ctx context.Context) error { return s.next.Update(ctx, table, id, fields) })
}

func (s *timeoutStore) Delete(ctx context.Context, table string, id uint) error {
	return s.call(ctx, func(ctx context.Context) error { return s.next.Delete(ctx, table, id) })
}

func (s *timeoutStore) Ping(ctx context.Context) error {
	p, ok := s.next.(Pinger)
	if !ok {
		return nil
	}
	return s.call(ctx, p.Ping)
}
