package page

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/sprintbridge/backend/internal/shared/types"
)

// DocstoreAPI calls the document store relative to its fixed origin.
type DocstoreAPI struct {
	client *Client
	site   string
}

// Request sends a raw docstore request.
func (d *DocstoreAPI) Request(ctx context.Context, req types.DocstoreRequest) (any, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	return d.client.Request(ctx, types.ServiceDocstore, req)
}

// TestConnection lists the site's lists, proving the session is valid.
func (d *DocstoreAPI) TestConnection(ctx context.Context) (any, error) {
	data, err := d.Request(ctx, types.DocstoreRequest{Endpoint: d.site + "/_api/web/lists"})
	if err != nil {
		return nil, err
	}
	return unwrapVerbose(data), nil
}

// ListFiles lists the files of a server-relative folder.
func (d *DocstoreAPI) ListFiles(ctx context.Context, folder string) (any, error) {
	endpoint := fmt.Sprintf("%s/_api/web/GetFolderByServerRelativeUrl('%s')/Files", d.site, encodeURIComponent(folder))
	data, err := d.Request(ctx, types.DocstoreRequest{Endpoint: endpoint})
	if err != nil {
		return nil, err
	}
	return unwrapVerbose(data), nil
}

// DownloadFile returns the base64 content of a server-relative file.
func (d *DocstoreAPI) DownloadFile(ctx context.Context, path string) (string, error) {
	endpoint := fmt.Sprintf("%s/_api/web/GetFileByServerRelativeUrl('%s')/$value", d.site, encodeURIComponent(path))
	data, err := d.Request(ctx, types.DocstoreRequest{Endpoint: endpoint, BinaryResponse: true})
	if err != nil {
		return "", err
	}
	encoded, ok := data.(string)
	if !ok {
		return "", fmt.Errorf("unexpected download payload %T", data)
	}
	return encoded, nil
}

// DownloadFileBytes is DownloadFile decoded.
func (d *DocstoreAPI) DownloadFileBytes(ctx context.Context, path string) ([]byte, error) {
	encoded, err := d.DownloadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// unwrapVerbose returns the "d" member of an odata=verbose body when set.
func unwrapVerbose(data any) any {
	if m, ok := data.(map[string]any); ok {
		if inner, ok := m["d"]; ok && truthy(inner) {
			return inner
		}
	}
	return data
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	}
	return true
}
