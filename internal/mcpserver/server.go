package mcpserver

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ssh-vom/gutenberg-browse/internal/browse"
	"github.com/ssh-vom/gutenberg-browse/internal/catalog"
	"github.com/ssh-vom/gutenberg-browse/internal/providers/books"
)

const serverName = "gutenberg-browse"

type ListBooksParams struct {
	Category string `json:"category" jsonschema:"genre to list, one of the values returned by list_categories"`
	Query    string `json:"query,omitempty" jsonschema:"optional text matched against titles and author names"`
	Page     int    `json:"page,omitempty" jsonschema:"page number starting at 1"`
}

type ListCategoriesParams struct{}

type CategoryList struct {
	Categories []string `json:"categories"`
}

type BookSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Authors  string `json:"authors,omitempty"`
	Viewable string `json:"viewable,omitempty"`
	Cover    string `json:"cover,omitempty"`
}

type BookListing struct {
	Category string        `json:"category"`
	Query    string        `json:"query,omitempty"`
	Page     int           `json:"page"`
	Total    int           `json:"total"`
	HasMore  bool          `json:"has_more"`
	Books    []BookSummary `json:"books"`
}

type Server struct {
	provider books.Provider
	pageSize int
	version  string
	logger   *zap.Logger
}

func New(provider books.Provider, pageSize int, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = browse.DefaultPageSize
	}
	return &Server{provider: provider, pageSize: pageSize, version: version, logger: logger}
}

func (server *Server) build() *mcp.Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: server.version,
	}, nil)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "list_books",
		Description: "List one page of public-domain books in a genre, optionally filtered by title or author",
	}, server.ListBooks)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "list_categories",
		Description: "List the genres accepted by list_books",
	}, server.ListCategories)

	return mcpServer
}

// Run serves the tools over stdio until ctx is cancelled or the client
// disconnects.
func (server *Server) Run(ctx context.Context) error {
	server.logger.Info("Starting MCP server (stdio)",
		zap.String("name", serverName),
		zap.String("version", server.version),
	)
	return server.build().Run(ctx, &mcp.StdioTransport{})
}

func (server *Server) ListBooks(ctx context.Context, req *mcp.CallToolRequest, params ListBooksParams) (*mcp.CallToolResult, any, error) {
	category := strings.ToUpper(strings.TrimSpace(params.Category))
	if !slices.Contains(catalog.Categories, category) {
		return nil, nil, fmt.Errorf("unknown category %q, expected one of %s", params.Category, strings.Join(catalog.Categories, ", "))
	}

	server.logger.Info("list_books called",
		zap.String("category", category),
		zap.String("query", params.Query),
		zap.Int("page", params.Page),
	)

	listing, err := browse.Fetch(ctx, server.provider, browse.Filters{
		Category:   category,
		SearchTerm: params.Query,
	}, params.Page, server.pageSize)
	if err != nil {
		server.logger.Error("list_books failed", zap.String("category", category), zap.Error(err))
		return nil, nil, err
	}

	result := NewListing(category, params.Query, listing)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: result.String()}},
	}, result, nil
}

func (server *Server) ListCategories(ctx context.Context, req *mcp.CallToolRequest, params ListCategoriesParams) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: strings.Join(catalog.Categories, "\n")}},
	}, CategoryList{Categories: catalog.Categories}, nil
}

// NewListing converts one fetched page into its printable summary.
func NewListing(category, query string, listing browse.Listing) BookListing {
	result := BookListing{
		Category: category,
		Query:    strings.TrimSpace(query),
		Page:     listing.Page,
		Total:    listing.Total,
		HasMore:  listing.HasMore,
		Books:    make([]BookSummary, 0, len(listing.Books)),
	}
	for _, book := range listing.Books {
		result.Books = append(result.Books, summarize(book))
	}
	return result
}

func summarize(book catalog.Book) BookSummary {
	summary := BookSummary{
		ID:      book.ID,
		Title:   book.Title,
		Authors: book.AuthorNames(),
		Cover:   book.CoverURL(),
	}
	if link, err := book.ViewableLink(); err == nil {
		summary.Viewable = link.URL
	}
	return summary
}

func (listing BookListing) String() string {
	if len(listing.Books) == 0 {
		return "No books found."
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "%d book(s) in %s, page %d", listing.Total, listing.Category, listing.Page)
	if listing.HasMore {
		builder.WriteString(" (more available)")
	}
	builder.WriteString("\n")
	for _, book := range listing.Books {
		fmt.Fprintf(&builder, "\n%s\n", book.Title)
		if book.Authors != "" {
			fmt.Fprintf(&builder, "  by %s\n", book.Authors)
		}
		if book.Viewable != "" {
			fmt.Fprintf(&builder, "  read: %s\n", book.Viewable)
		}
	}
	return builder.String()
}
