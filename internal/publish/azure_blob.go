// Package publish uploads finished output files to Azure Blob Storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// EnvConnectionString names the variable holding the storage connection string
const EnvConnectionString = "AZURE_STORAGE_CONNECTION_STRING"

// Uploader stores one local file under a blob name and returns its URL
type Uploader interface {
	UploadFile(ctx context.Context, blobName, localPath string) (string, error)
}

// AzureBlobUploader uploads into a single container using a shared key
type AzureBlobUploader struct {
	client    *azblob.Client
	container string
	logger    *zap.Logger

	initOnce sync.Once
	initErr  error
}

// FromEnv builds an uploader from AZURE_STORAGE_CONNECTION_STRING.
func FromEnv(container string, logger *zap.Logger) (*AzureBlobUploader, error) {
	return NewAzureBlobUploader(os.Getenv(EnvConnectionString), container, logger)
}

// NewAzureBlobUploader creates an uploader from a standard connection string.
// A BlobEndpoint over plain http (Azurite) is allowed.
func NewAzureBlobUploader(connectionString, container string, logger *zap.Logger) (*AzureBlobUploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if connectionString == "" {
		return nil, fmt.Errorf("connection string is required (set %s)", EnvConnectionString)
	}
	if container == "" {
		return nil, fmt.Errorf("container name is required")
	}

	params := parseConnectionString(connectionString)
	accountName := params["AccountName"]
	accountKey := params["AccountKey"]
	serviceURL := params["BlobEndpoint"]
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("account name and key are required in the connection string")
	}
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	var clientOpts *azblob.ClientOptions
	if strings.HasPrefix(strings.ToLower(serviceURL), "http://") {
		clientOpts = &azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{InsecureAllowCredentialWithHTTP: true},
		}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return &AzureBlobUploader{client: client, container: container, logger: logger}, nil
}

// UploadFile streams localPath into the container.
func (a *AzureBlobUploader) UploadFile(ctx context.Context, blobName, localPath string) (string, error) {
	if err := a.ensureContainer(ctx); err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = a.client.UploadFile(ctx, a.container, blobName, f, &azblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(ContentType(localPath))},
	})
	if err != nil {
		a.logger.Error("Failed to upload output file",
			zap.String("blob", blobName),
			zap.String("path", localPath),
			zap.Error(err))
		return "", fmt.Errorf("blob upload failed: %w", err)
	}

	url := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(blobName).URL()
	a.logger.Info("Uploaded output file", zap.String("blob", blobName), zap.String("url", url))
	return url, nil
}

func (a *AzureBlobUploader) ensureContainer(ctx context.Context) error {
	a.initOnce.Do(func() {
		_, err := a.client.CreateContainer(ctx, a.container, nil)
		if err == nil {
			return
		}
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == "ContainerAlreadyExists" {
			return
		}
		a.initErr = fmt.Errorf("failed to ensure container: %w", err)
	})
	return a.initErr
}

func parseConnectionString(connectionString string) map[string]string {
	parts := strings.Split(connectionString, ";")
	params := make(map[string]string, len(parts))
	for _, part := range parts {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || key == "" {
			continue
		}
		params[key] = value
	}
	return params
}

// ContentType guesses the blob content type from the output extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".jsonl", ".ndjson":
		return "application/x-ndjson"
	default:
		return "application/octet-stream"
	}
}

// BlobName maps a local output file to its blob name: prefix followed by
// the file's slash-separated path relative to root. Files outside root keep
// only their base name.
func BlobName(prefix, root, file string) string {
	rel := filepath.Base(file)
	if root != "" {
		if r, err := filepath.Rel(root, file); err == nil && r != "." && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)
	if prefix = strings.Trim(prefix, "/"); prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// Outputs uploads every file and returns the URLs that succeeded. Failures
// do not stop the remaining uploads; they are joined in the returned error.
func Outputs(ctx context.Context, up Uploader, prefix, root string, files []string) ([]string, error) {
	var (
		urls []string
		errs error
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return urls, multierr.Append(errs, err)
		}
		url, err := up.UploadFile(ctx, BlobName(prefix, root, f), f)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		urls = append(urls, url)
	}
	return urls, errs
}
