package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/models"
)

const (
	serverName    = "img-relay"
	serverVersion = "1.0.0"
)

// Relay is the subset of relay.Service exposed as tools
type Relay interface {
	Resolve(ctx context.Context, reference string) models.Resolution
	ResolveAndFetch(ctx context.Context, reference string) (*models.Image, error)
	FetchAndCompress(ctx context.Context, reference string, variant models.Variant) (*models.EncodedImage, error)
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Relay     Relay
	Transport string // "stdio" or "sse"
	Port      int
	Logger    *logrus.Logger
}

// Server wraps the MCP server with image relay tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Relay == nil {
		return nil, fmt.Errorf("relay is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	resolveTool := mcp.NewTool("resolve_image",
		mcp.WithDescription("Resolve an image link or social media post URL to a direct image URL without downloading it"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Image URL or platform page (YouTube, Instagram, Twitter/X, Imgur, Giphy, ...)"),
		),
	)
	s.mcpServer.AddTool(resolveTool, s.handleResolveImage)

	fetchTool := mcp.NewTool("fetch_image",
		mcp.WithDescription("Resolve and download an image, returning it inline. Results are cached by the original URL."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Image URL or platform page"),
		),
	)
	s.mcpServer.AddTool(fetchTool, s.handleFetchImage)

	compressTool := mcp.NewTool("compress_image",
		mcp.WithDescription("Fetch an image and re-encode it as a JPEG under a byte budget"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Image URL or platform page"),
		),
		mcp.WithString("variant",
			mcp.Description("extreme (~3 KB pixelated thumbnail) or standard (~100 KB, default)"),
			mcp.Enum(string(models.VariantExtreme), string(models.VariantStandard)),
		),
	)
	s.mcpServer.AddTool(compressTool, s.handleCompressImage)

	prefetchTool := mcp.NewTool("prefetch_images",
		mcp.WithDescription("Warm the image cache for a batch of URLs in the background. Returns immediately with a job ID."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description(fmt.Sprintf("Image URLs or platform pages (max %d)", maxPrefetchBatch)),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
	s.mcpServer.AddTool(prefetchTool, s.handlePrefetchImages)

	jobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status of a prefetch job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by prefetch_images"),
		),
	)
	s.mcpServer.AddTool(jobStatusTool, s.handleGetJobStatus)

	s.log.Infof("Registered %d MCP tools", 5)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running prefetch jobs
func (s *Server) Shutdown(_ context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
