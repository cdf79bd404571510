package clients

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// IdentityClient asks the user service who exists and who may see whose
// calendar.
type IdentityClient struct {
	c       *Client
	timeout time.Duration
}

func NewIdentityClient(c *Client, timeout time.Duration) *IdentityClient {
	return &IdentityClient{c: c, timeout: timeout}
}

func (ic *IdentityClient) UserExists(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := ic.withTimeout(ctx)
	defer cancel()

	err := ic.c.doJSON(ctx, http.MethodGet, "/users/"+strconv.FormatInt(userID, 10), "", nil, nil)
	if err == nil {
		return true, nil
	}
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (ic *IdentityClient) CanView(ctx context.Context, ownerID, viewerID int64) (bool, error) {
	ctx, cancel := ic.withTimeout(ctx)
	defer cancel()

	q := url.Values{}
	q.Set("viewerId", strconv.FormatInt(viewerID, 10))

	var allowed bool
	path := "/users/" + strconv.FormatInt(ownerID, 10) + "/can-view"
	if err := ic.c.doJSON(ctx, http.MethodGet, path, q.Encode(), nil, &allowed); err != nil {
		return false, err
	}
	return allowed, nil
}

func (ic *IdentityClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ic.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, ic.timeout)
}
