package kv

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/valkey-io/valkey-go"
)

// Valkey stores values as plain string keys on a valkey (or redis) server.
type Valkey struct {
	client valkey.Client
}

func OpenValkey(u *url.URL) (*Valkey, error) {
	opt := valkey.ClientOption{
		InitAddress: []string{u.Host},
	}

	if u.User != nil {
		opt.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opt.Password = pw
		}
	}

	if db := strings.Trim(u.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid valkey database %q: %w", db, err)
		}
		opt.SelectDB = n
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", u.Host, err)
	}

	return &Valkey{client: client}, nil
}

func (v *Valkey) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := v.client.Do(ctx, v.client.B().Get().Key(key).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (v *Valkey) Set(ctx context.Context, key, value string) error {
	return v.client.Do(ctx, v.client.B().Set().Key(key).Value(value).Build()).Error()
}

func (v *Valkey) Delete(ctx context.Context, key string) error {
	return v.client.Do(ctx, v.client.B().Del().Key(key).Build()).Error()
}

func (v *Valkey) Close() error {
	v.client.Close()
	return nil
}
