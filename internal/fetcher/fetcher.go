package fetcher

import (
	"context"

	"github.com/webxcore/webx/pkg/failure"
)

type Fetcher interface {
	Fetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError)
}
