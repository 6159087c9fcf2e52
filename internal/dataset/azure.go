package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/fieldbench/fieldbench/internal/models"
)

// AzureSource fetches files from an Azure Blob Storage container. Blobs use
// the same media-family layout as the HTTP store.
type AzureSource struct {
	client    *azblob.Client
	account   string
	container string
}

// NewAzureSource creates a source for the given storage account and
// container, authenticating with the default Azure credential chain.
func NewAzureSource(account, container string) (*AzureSource, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("dataset: azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("dataset: azure client: %w", err)
	}

	return &AzureSource{
		client:    client,
		account:   account,
		container: container,
	}, nil
}

var _ Source = (*AzureSource)(nil)

// Validate checks the source was configured with an account and container.
func (s *AzureSource) Validate() error {
	if s.account == "" || s.container == "" {
		return errors.New("dataset: azure source requires account and container")
	}
	return nil
}

// Fetch downloads one blob.
func (s *AzureSource) Fetch(ctx context.Context, name string, kind models.FileKind) (Payload, error) {
	blobName := path.Join(subdirFor(kind), name)

	resp, err := s.client.DownloadStream(ctx, s.container, blobName, nil)
	if err != nil {
		return Payload{}, mapAzureError(err, name)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, fmt.Errorf("dataset: reading blob %s: %w", blobName, err)
	}

	var mime string
	if resp.ContentType != nil {
		mime = *resp.ContentType
	}
	return Payload{Name: name, MIME: mime, Bytes: data}, nil
}

// mapAzureError folds service responses into the package sentinels so
// callers see the same failure modes regardless of source kind.
func mapAzureError(err error, name string) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s (%s)", ErrNotAuthorized, name, respErr.ErrorCode)
		}
	}
	return fmt.Errorf("dataset: fetching %s: %w", name, err)
}
