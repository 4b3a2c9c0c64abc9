package testutil

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"yqhp/syncbridge/internal/command"
	"yqhp/syncbridge/internal/result"
	"yqhp/syncbridge/internal/wire"
)

// HTTPSurface is a command surface backed by the server of StartServer.
// Every command returns a future settled by a background request.
type HTTPSurface struct {
	client *wire.Client
}

// NewHTTPSurface creates a surface talking to baseURL.
func NewHTTPSurface(baseURL string) *HTTPSurface {
	return &HTTPSurface{client: wire.NewClient(baseURL, 5*time.Second)}
}

// Commands implements command.Surface.
func (s *HTTPSurface) Commands() map[string]command.Func {
	return command.Map{
		"getValue": func(ctx context.Context, args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("getValue expects a duration in ms")
			}
			return s.client.Get(fmt.Sprintf("/value/%v", args[0])), nil
		},
		"elements": func(ctx context.Context, args ...any) (any, error) {
			selector, _ := firstString(args)
			return s.client.Get("/elements?selector=" + url.QueryEscape(selector)), nil
		},
		"getText": func(ctx context.Context, args ...any) (any, error) {
			id, ok := firstString(args)
			if !ok {
				subject, found := result.SubjectFrom(ctx)
				if !found {
					return nil, fmt.Errorf("getText needs an element id or an element result")
				}
				v, _ := subject.Get(result.ElementKey)
				id = fmt.Sprint(v)
			}
			return s.client.Get("/element/" + url.PathEscape(id) + "/text").Map(wire.Field("value")), nil
		},
		"fail": func(ctx context.Context, args ...any) (any, error) {
			return s.client.Get("/fail"), nil
		},
	}
}

func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}
