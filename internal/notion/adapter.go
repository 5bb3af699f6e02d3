package notion

import (
	"github.com/jomei/notionapi"
)

// apiClient exposes the services of the official client through NotionClient
type apiClient struct {
	*notionapi.Client
}

func newAPIClient(token string) NotionClient {
	return apiClient{notionapi.NewClient(notionapi.Token(token))}
}

func (c apiClient) Page() PageService {
	return c.Client.Page
}

func (c apiClient) Search() SearchService {
	return c.Client.Search
}

func (c apiClient) Block() BlockService {
	return c.Client.Block
}

func (c apiClient) Database() DatabaseService {
	return c.Client.Database
}
