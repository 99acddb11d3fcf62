package mcpTool

import (
	"context"
	"net/http"

	"github.com/akolanti/docqa/internal/adapter"
	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/rag"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "1.0.0"

type AnswerInput struct {
	Documents string   `json:"documents" jsonschema:"http or https URL of the PDF, DOCX, email or text document"`
	Questions []string `json:"questions" jsonschema:"questions to answer from the document, answered in order"`
}

type AnswerOutput struct {
	RunId   string   `json:"run_id"`
	Answers []string `json:"answers"`
}

// Server exposes the question answering run as an MCP tool.
type Server struct {
	service      rag.Service
	maxQuestions int
	server       *mcp.Server
	logger       *logger_i.Logger
}

func NewServer(service rag.Service, maxQuestions int) *Server {
	s := &Server{
		service:      service,
		maxQuestions: maxQuestions,
		server:       mcp.NewServer(&mcp.Implementation{Name: "docqa", Version: Version}, nil),
		logger:       logger_i.NewLogger("MCP"),
	}
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "answer_questions",
		Description: "Read one document from a URL and answer questions about it using only its content",
	}, s.handleAnswer)
	return s
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) handleAnswer(ctx context.Context, _ *mcp.CallToolRequest, input AnswerInput) (*mcp.CallToolResult, AnswerOutput, error) {
	runId := utils.GetNewUUID()
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)

	req, err := adapter.ToRagRequest(api.RunRequest{Documents: input.Documents, Questions: input.Questions}, runId, s.maxQuestions)
	if err != nil {
		return nil, AnswerOutput{}, err
	}

	s.logger.Info("answer_questions called", "traceId", trace, "runId", runId, "questions", len(req.Questions))
	result, err := s.service.Run(ctx, req)
	if err != nil {
		return nil, AnswerOutput{}, err
	}
	return nil, AnswerOutput{RunId: result.RunId, Answers: result.Answers}, nil
}
