// Package publisher implements the four Publisher adapters of spec §4.5:
// Console, File, Mastodon, Telegram. Each is a thin HTTP or io.Writer
// wrapper, grounded on the teacher's telegram.Notifier net/http idiom.
package publisher

import "context"

// Publisher is the port every channel adapter satisfies.
type Publisher interface {
	Name() string
	SoftCharLimit() int
	Publish(ctx context.Context, channel string, post string) error
}
