package page

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/sprintbridge/backend/internal/shared/types"
)

// DefaultMaxResults is the page size of GetIssues.
const DefaultMaxResults = 100

// issueFields are the fields requested by GetIssues.
const issueFields = "summary,status,assignee,issuetype,priority,customfield_10016"

// Credentials identify a tracker instance and, optionally, a basic-auth user.
// Empty credentials rely on the session cookies of the tracker.
type Credentials struct {
	BaseURL  string
	Username string
	Password string
}

func (c Credentials) url(path string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + path
}

// TrackerAPI calls the issue tracker.
type TrackerAPI struct {
	client *Client
}

// Request sends a raw tracker request.
func (t *TrackerAPI) Request(ctx context.Context, req types.TrackerRequest) (any, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	return t.client.Request(ctx, types.ServiceTracker, req)
}

func (t *TrackerAPI) get(ctx context.Context, c Credentials, path string) (any, error) {
	return t.Request(ctx, types.TrackerRequest{
		URL:      c.url(path),
		Username: c.Username,
		Password: c.Password,
	})
}

func (t *TrackerAPI) post(ctx context.Context, c Credentials, path string, body any) (any, error) {
	return t.Request(ctx, types.TrackerRequest{
		URL:      c.url(path),
		Method:   http.MethodPost,
		Body:     body,
		Username: c.Username,
		Password: c.Password,
	})
}

// Login returns the authenticated user, verifying the credentials.
func (t *TrackerAPI) Login(ctx context.Context, c Credentials) (any, error) {
	return t.get(ctx, c, "/rest/api/2/myself")
}

// GetIssues searches issues by JQL. maxResults <= 0 means DefaultMaxResults.
func (t *TrackerAPI) GetIssues(ctx context.Context, c Credentials, jql string, maxResults int) (any, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	path := "/rest/api/2/search?jql=" + encodeURIComponent(jql) +
		"&maxResults=" + strconv.Itoa(maxResults) +
		"&fields=" + issueFields
	return t.get(ctx, c, path)
}

// GetIssue returns one issue by key.
func (t *TrackerAPI) GetIssue(ctx context.Context, c Credentials, key string) (any, error) {
	return t.get(ctx, c, "/rest/api/2/issue/"+key)
}

// AddComment adds a comment to an issue.
func (t *TrackerAPI) AddComment(ctx context.Context, c Credentials, key, text string) (any, error) {
	return t.post(ctx, c, "/rest/api/2/issue/"+key+"/comment", map[string]any{"body": text})
}

// GetTransitions lists the transitions available for an issue.
func (t *TrackerAPI) GetTransitions(ctx context.Context, c Credentials, key string) (any, error) {
	return t.get(ctx, c, "/rest/api/2/issue/"+key+"/transitions")
}

// TransitionIssue moves an issue through a transition.
func (t *TrackerAPI) TransitionIssue(ctx context.Context, c Credentials, key, transitionID string) (any, error) {
	body := map[string]any{"transition": map[string]any{"id": transitionID}}
	return t.post(ctx, c, "/rest/api/2/issue/"+key+"/transitions", body)
}

// GetBoards lists agile boards.
func (t *TrackerAPI) GetBoards(ctx context.Context, c Credentials) (any, error) {
	return t.get(ctx, c, "/rest/agile/1.0/board")
}

// GetSprints lists the sprints of a board.
func (t *TrackerAPI) GetSprints(ctx context.Context, c Credentials, boardID string) (any, error) {
	return t.get(ctx, c, "/rest/agile/1.0/board/"+boardID+"/sprint")
}
