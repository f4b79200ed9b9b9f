package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	azureblob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/sethvargo/go-retry"

	"github.com/okian/onetoone/pkg/logger"
	"github.com/okian/onetoone/pkg/metrics"
)

const (
	defaultAzureTimeout   = 10 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBase      = 100 * time.Millisecond
	azureDefaultURLFormat = "https://%s.blob.core.windows.net"
)

// AzureOption configures an Azure store.
type AzureOption func(*Azure)

// WithHTTPClient sets the HTTP client the SDK sends requests with.
func WithHTTPClient(c *http.Client) AzureOption {
	return func(a *Azure) {
		if c != nil {
			a.transport = c
		}
	}
}

// WithSASToken appends a shared access signature to the service URL.
func WithSASToken(token string) AzureOption {
	return func(a *Azure) {
		a.sas = strings.TrimPrefix(strings.TrimSpace(token), "?")
	}
}

// WithRetry sets how often idempotent reads are retried and the first backoff.
func WithRetry(attempts int, base time.Duration) AzureOption {
	return func(a *Azure) {
		if attempts >= 0 {
			a.attempts = uint64(attempts)
		}
		if base > 0 {
			a.retryBase = base
		}
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) AzureOption {
	return func(a *Azure) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithAzureLogger sets the logger.
func WithAzureLogger(l logger.Logger) AzureOption {
	return func(a *Azure) {
		if l != nil {
			a.logger = l
		}
	}
}

// Azure keeps objects in Azure Blob Storage as block blobs named
// <container>/<key>.json.
type Azure struct {
	client    *azblob.Client
	sas       string
	transport policy.Transporter
	timeout   time.Duration
	attempts  uint64
	retryBase time.Duration
	logger    logger.Logger
}

// NewAzure creates a store for account. A non-empty endpoint (for example an
// Azurite URL) replaces the public account endpoint.
func NewAzure(account, endpoint string, opts ...AzureOption) (*Azure, error) {
	if endpoint == "" {
		endpoint = fmt.Sprintf(azureDefaultURLFormat, account)
	}
	a := &Azure{
		timeout:   defaultAzureTimeout,
		attempts:  defaultRetryAttempts,
		retryBase: defaultRetryBase,
		logger:    logger.Get().Named("blob.azure"),
	}
	for _, opt := range opts {
		opt(a)
	}

	serviceURL := strings.TrimRight(endpoint, "/") + "/"
	if a.sas != "" {
		serviceURL += "?" + a.sas
	}
	// writes must not be retried by the pipeline: a conditional put that
	// timed out may have landed
	clientOpts := &azblob.ClientOptions{}
	clientOpts.Retry = policy.RetryOptions{MaxRetries: -1}
	if a.transport != nil {
		clientOpts.Transport = a.transport
	}
	client, err := azblob.NewClientWithNoCredential(serviceURL, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("azure client for %s: %w", endpoint, err)
	}
	a.client = client
	return a, nil
}

// URL returns the request URL of key in container, SAS included.
func (a *Azure) URL(container, key string) string {
	return a.blockBlob(container, key).URL()
}

func (a *Azure) blockBlob(container, key string) *blockblob.Client {
	return a.client.ServiceClient().NewContainerClient(container).NewBlockBlobClient(ObjectName(key))
}

func (a *Azure) Get(ctx context.Context, container, key string) (Object, error) {
	var obj Object
	err := a.withRetry(ctx, "get", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		resp, err := a.blockBlob(container, key).DownloadStream(ctx, nil)
		if err != nil {
			return retryable(mapAzureError("get", key, err))
		}
		defer func() { _ = resp.Body.Close() }()
		data, err := readObject(resp.Body, key)
		if err != nil {
			return err
		}
		obj = Object{Data: data, Version: etag(resp.ETag)}
		return nil
	})
	return obj, err
}

func (a *Azure) Head(ctx context.Context, container, key string) (string, error) {
	var version string
	err := a.withRetry(ctx, "head", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		props, err := a.blockBlob(container, key).GetProperties(ctx, nil)
		if err != nil {
			return retryable(mapAzureError("head", key, err))
		}
		version = etag(props.ETag)
		return nil
	})
	return version, err
}

// Put is never retried.
func (a *Azure) Put(ctx context.Context, container, key string, data []byte, cond Condition) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	opts := &blockblob.UploadOptions{
		HTTPHeaders: &azureblob.HTTPHeaders{BlobContentType: to.Ptr(contentTypeJSON)},
	}
	switch {
	case cond.IfNoneMatch:
		opts.AccessConditions = &azureblob.AccessConditions{
			ModifiedAccessConditions: &azureblob.ModifiedAccessConditions{IfNoneMatch: to.Ptr(azcore.ETagAny)},
		}
	case cond.IfMatch != "":
		opts.AccessConditions = &azureblob.AccessConditions{
			ModifiedAccessConditions: &azureblob.ModifiedAccessConditions{IfMatch: to.Ptr(azcore.ETag(cond.IfMatch))},
		}
	}

	resp, err := a.blockBlob(container, key).Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), opts)
	if err != nil {
		err = mapAzureError("put", key, err)
		if cond.IfMatch != "" && errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: put %s: object vanished", ErrPrecondition, key)
		}
		return "", err
	}
	return etag(resp.ETag), nil
}

func (a *Azure) Delete(ctx context.Context, container, key string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if _, err := a.blockBlob(container, key).Delete(ctx, nil); err != nil {
		return mapAzureError("delete", key, err)
	}
	return nil
}

func (a *Azure) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempt := 0
	b := retry.WithMaxRetries(a.attempts, retry.NewExponential(a.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.RecordStorageRetry()
			a.logger.Debug(ctx, "retrying blob request",
				logger.String("op", op),
				logger.Int("attempt", attempt),
			)
		}
		return fn(ctx)
	})
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrTransport) {
		// retry.Do reports cancellation with the bare context error
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}
	return err
}

// mapAzureError classifies SDK errors by storage error code, falling back to
// the HTTP status when the service sent no code.
func mapAzureError(op, key string, err error) error {
	switch {
	case bloberror.HasCode(err, bloberror.ConditionNotMet, bloberror.BlobAlreadyExists):
		return fmt.Errorf("%w: %s %s: %w", ErrPrecondition, op, key, err)
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound):
		return fmt.Errorf("%w: %s %s: %w", ErrNotFound, op, key, err)
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s %s: %w", ErrNotFound, op, key, err)
		case http.StatusPreconditionFailed, http.StatusConflict:
			return fmt.Errorf("%w: %s %s: %w", ErrPrecondition, op, key, err)
		}
	}
	return fmt.Errorf("%w: %s %s: %w", ErrTransport, op, key, err)
}

// retryable marks transport failures without an answer, or with a server
// error, for another attempt.
func retryable(err error) error {
	if !errors.Is(err, ErrTransport) {
		return err
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode < http.StatusInternalServerError {
		return err
	}
	return retry.RetryableError(err)
}

func etag(e *azcore.ETag) string {
	if e == nil {
		return ""
	}
	return string(*e)
}
