package interceptors

import (
	"context"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/broady/shapeclient"
	"github.com/broady/shapeclient/transport"
)

// Header names set by the interceptors in this file.
const (
	InvocationIDHeader = "X-Invocation-Id"
	AttemptHeader      = "X-Attempt"
)

// InvocationID tags every attempt of a call with the same random
// invocation ID and the attempt number, so servers can correlate retries.
type InvocationID struct {
	shapeclient.NopInterceptor
}

func (InvocationID) ModifyBeforeRetryLoop(_ context.Context, rc *shapeclient.RequestContext) (*transport.Request, error) {
	if rc.Request.Header.Get(InvocationIDHeader) == "" {
		rc.Request.Header.Set(InvocationIDHeader, uuid.NewString())
	}
	return rc.Request, nil
}

func (InvocationID) ModifyBeforeTransmit(_ context.Context, rc *shapeclient.RequestContext) (*transport.Request, error) {
	rc.Request.Header.Set(AttemptHeader, strconv.Itoa(rc.Attempt))
	return rc.Request, nil
}

// UserAgent sets the User-Agent header to "shapeclient/<version>
// <service>/<version>" followed by any extra products.
type UserAgent struct {
	shapeclient.NopInterceptor
	Extra []string
}

func (u UserAgent) ModifyBeforeTransmit(_ context.Context, rc *shapeclient.RequestContext) (*transport.Request, error) {
	parts := []string{"shapeclient/" + moduleVersion()}
	if svc := rc.Service; svc != nil {
		p := svc.Name()
		if svc.Version != "" {
			p += "/" + svc.Version
		}
		parts = append(parts, p)
	}
	parts = append(parts, u.Extra...)
	rc.Request.Header.Set("User-Agent", strings.Join(parts, " "))
	return rc.Request, nil
}

func moduleVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}
	for _, dep := range info.Deps {
		if dep.Path == "github.com/broady/shapeclient" {
			return dep.Version
		}
	}
	return "devel"
}
