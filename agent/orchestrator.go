// Package agent 实现 readr 的多智能体编排：
// 上下文检索 → 并行专家 → 综合输出的固定流水线.
package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/readr/internal/metrics"
	"github.com/BaSui01/readr/knowledge"
	"github.com/BaSui01/readr/llm"
	"github.com/BaSui01/readr/rag"
	"github.com/BaSui01/readr/rag/sources"
	"github.com/BaSui01/readr/types"
)

// Stage 流水线阶段.
type Stage string

const (
	StageRetrieveContext Stage = "retrieve_context" // 检索文档与外部知识
	StageRunSpecialists  Stage = "run_specialists"  // 并行执行三个专家
	StageSynthesize      Stage = "synthesize"       // 综合输出
	StageDone            Stage = "done"
)

// 专家阶段降级占位文本，单专家超时或失败时替代其输出.
const (
	readerPlaceholder   = "No textual information available for this question."
	contextPlaceholder  = "No historical or biographical context available for this question."
	analysisPlaceholder = "No literary analysis available for this question."
)

// Config 编排器配置.
type Config struct {
	Model        string        `json:"model" yaml:"model"`
	Temperature  float32       `json:"temperature" yaml:"temperature"`
	MaxTokens    int           `json:"max_tokens" yaml:"max_tokens"`
	TopK         int           `json:"top_k" yaml:"top_k"`                 // 文档检索块数
	StageTimeout time.Duration `json:"stage_timeout" yaml:"stage_timeout"` // 单阶段超时
	Stream       bool          `json:"stream" yaml:"stream"`               // 综合阶段流式输出
}

// DefaultConfig 返回默认编排配置.
func DefaultConfig() Config {
	return Config{
		Temperature:  0.7,
		MaxTokens:    2048,
		TopK:         5,
		StageTimeout: 60 * time.Second,
		Stream:       true,
	}
}

// Request 一次分析请求.
type Request struct {
	Question string             `json:"question"`
	Mode     types.AnalysisMode `json:"mode"`
	History  []types.Message    `json:"history,omitempty"`
}

// Response 编排结果.
type Response struct {
	TraceID           string        `json:"trace_id"`
	Answer            string        `json:"answer"`
	DocumentContext   string        `json:"document_context,omitempty"`
	ExternalKnowledge string        `json:"external_knowledge,omitempty"`
	ReaderOutput      string        `json:"reader_output,omitempty"`
	ContextOutput     string        `json:"context_output,omitempty"`
	AnalysisOutput    string        `json:"analysis_output,omitempty"`
	Duration          time.Duration `json:"duration"`
}

// Sink 接收综合阶段的增量输出.
type Sink func(delta string)

// Orchestrator 多智能体编排器.
// 专家阶段软降级（超时或失败用占位文本替代），综合阶段失败则整体失败.
type Orchestrator struct {
	provider  llm.Provider
	index     *rag.DocumentIndex
	knowledge *knowledge.Retriever
	extractor TermExtractor
	cfg       Config
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewOrchestrator 创建编排器.
// index 与 kb 可为 nil（未上传文档 / 未配置外部源时对应上下文为空）.
func NewOrchestrator(provider llm.Provider, index *rag.DocumentIndex, kb *knowledge.Retriever, cfg Config, collector *metrics.Collector, logger *zap.Logger) *Orchestrator {
	if cfg.StageTimeout == 0 {
		cfg.StageTimeout = 60 * time.Second
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		provider:  provider,
		index:     index,
		knowledge: kb,
		extractor: NewHeuristicExtractor(),
		cfg:       cfg,
		metrics:   collector,
		logger:    logger.With(zap.String("component", "orchestrator")),
	}
}

// Run 执行完整流水线.
// sink 为 nil 时不产生增量输出；综合失败返回 SYNTHESIS_FAILED.
func (o *Orchestrator) Run(ctx context.Context, req *Request, sink Sink) (*Response, error) {
	start := time.Now()
	traceID := uuid.NewString()
	logger := o.logger.With(zap.String("trace_id", traceID))

	logger.Info("pipeline started",
		zap.String("mode", string(req.Mode)),
		zap.Int("question_len", len(req.Question)),
	)

	// ===== 阶段 1: 检索上下文 =====
	docContext, externalKnowledge := o.retrieveContext(ctx, req, logger)

	// ===== 阶段 2: 并行专家 =====
	readerOut, contextOut, analysisOut := o.runSpecialists(ctx, req, docContext, externalKnowledge, logger)

	// ===== 阶段 3: 综合 =====
	answer, err := o.synthesize(ctx, req, readerOut, contextOut, analysisOut, sink, logger)
	if err != nil {
		return nil, types.NewError(types.ErrSynthesisFailed, "synthesis stage failed").WithCause(err)
	}

	duration := time.Since(start)
	logger.Info("pipeline finished",
		zap.String("stage", string(StageDone)),
		zap.Duration("duration", duration),
	)

	return &Response{
		TraceID:           traceID,
		Answer:            answer,
		DocumentContext:   docContext,
		ExternalKnowledge: externalKnowledge,
		ReaderOutput:      readerOut,
		ContextOutput:     contextOut,
		AnalysisOutput:    analysisOut,
		Duration:          duration,
	}, nil
}

// retrieveContext 并行检索文档上下文与外部知识，失败均软降级为空串.
func (o *Orchestrator) retrieveContext(ctx context.Context, req *Request, logger *zap.Logger) (docContext, externalKnowledge string) {
	stageStart := time.Now()
	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if o.index == nil || o.index.Len() == 0 {
			return
		}
		scored, err := o.index.Query(stageCtx, req.Question, o.cfg.TopK)
		if err != nil {
			logger.Warn("document retrieval failed", zap.Error(err))
			return
		}
		parts := make([]string, 0, len(scored))
		for _, sc := range scored {
			parts = append(parts, sc.Chunk.Text)
		}
		docContext = strings.Join(parts, "\n\n")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		externalKnowledge = o.fetchExternalKnowledge(stageCtx, req, logger)
	}()

	wg.Wait()

	o.recordStage(StageRetrieveContext, "ok", time.Since(stageStart))
	logger.Debug("context retrieved",
		zap.Int("doc_context_len", len(docContext)),
		zap.Int("external_len", len(externalKnowledge)),
	)
	return docContext, externalKnowledge
}

// externalTopK 临时知识索引对问题检索的块数.
const externalTopK = 3

// fetchExternalKnowledge 按分析模式获取外部记录，
// 建立临时索引后只取与问题最相关的块.
// 历史模式查时代背景，文本细读类模式查文学批评，通用模式做百科搜索.
func (o *Orchestrator) fetchExternalKnowledge(ctx context.Context, req *Request, logger *zap.Logger) string {
	if o.knowledge == nil {
		return ""
	}

	var records []sources.ExternalRecord
	appendResult := func(recs []sources.ExternalRecord, err error) {
		if err == nil {
			records = append(records, recs...)
		}
	}

	switch req.Mode {
	case types.ModeHistorical:
		for _, term := range o.extractor.Extract(req.Question) {
			appendResult(o.knowledge.HistoricalContext(ctx, term))
		}
	case types.ModeCharacter, types.ModeSymbolism, types.ModeTheme, types.ModeTechnique:
		for _, term := range o.extractor.Extract(req.Question) {
			appendResult(o.knowledge.LiteraryAnalysis(ctx, term))
		}
	default:
		appendResult(o.knowledge.Search(ctx, req.Question))
	}

	if len(records) == 0 {
		return ""
	}

	index, err := o.knowledge.BuildIndex(ctx, records)
	if err != nil || index == nil {
		if err != nil {
			logger.Warn("knowledge index build failed", zap.Error(err))
		}
		return ""
	}

	scored, err := index.Query(ctx, req.Question, externalTopK)
	if err != nil {
		logger.Warn("knowledge index query failed", zap.Error(err))
		return ""
	}

	sections := make([]string, 0, len(scored))
	for _, sc := range scored {
		sections = append(sections, sc.Chunk.Text)
	}
	return strings.Join(sections, "\n\n")
}

// specialist 单个专家的定义.
type specialist struct {
	name        string
	system      string
	input       string
	placeholder string
}

// runSpecialists 并行执行三个专家，固定顺序收集输出.
// 单专家失败或超时以占位文本降级，不中断流水线.
func (o *Orchestrator) runSpecialists(ctx context.Context, req *Request, docContext, externalKnowledge string, logger *zap.Logger) (readerOut, contextOut, analysisOut string) {
	stageStart := time.Now()

	specialists := []specialist{
		{"reader", readerSystemPrompt, readerInput(req.Question, docContext), readerPlaceholder},
		{"context", contextSystemPrompt, contextInput(req.Question, externalKnowledge), contextPlaceholder},
		{"analysis", analysisSystemPrompt, analysisInput(req.Question, docContext, externalKnowledge), analysisPlaceholder},
	}

	outputs := make([]string, len(specialists))
	var wg sync.WaitGroup

	for i, sp := range specialists {
		wg.Add(1)
		go func(i int, sp specialist) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
			defer cancel()

			resp, err := o.provider.Completion(callCtx, o.buildChatRequest(sp.system, sp.input, req.History))
			if err != nil {
				logger.Warn("specialist degraded to placeholder",
					zap.String("specialist", sp.name),
					zap.Error(err),
				)
				outputs[i] = sp.placeholder
				return
			}
			content := llm.FirstContent(resp)
			if strings.TrimSpace(content) == "" {
				outputs[i] = sp.placeholder
				return
			}
			outputs[i] = content
			if o.metrics != nil {
				o.metrics.RecordLLMTokens(o.provider.Name(), resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			}
		}(i, sp)
	}
	wg.Wait()

	o.recordStage(StageRunSpecialists, "ok", time.Since(stageStart))
	return outputs[0], outputs[1], outputs[2]
}

// synthesize 综合阶段：优先流式输出，流式建立失败时回退为同步请求.
func (o *Orchestrator) synthesize(ctx context.Context, req *Request, readerOut, contextOut, analysisOut string, sink Sink, logger *zap.Logger) (string, error) {
	stageStart := time.Now()
	stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	chatReq := o.buildChatRequest(
		synthesisSystemPrompt,
		synthesisInput(req.Question, readerOut, contextOut, analysisOut),
		req.History,
	)

	if o.cfg.Stream && sink != nil {
		ch, err := o.provider.Stream(stageCtx, chatReq)
		if err == nil {
			var sb strings.Builder
			for chunk := range ch {
				if chunk.Err != nil {
					o.recordStage(StageSynthesize, "error", time.Since(stageStart))
					return "", chunk.Err
				}
				if chunk.Delta.Content != "" {
					sb.WriteString(chunk.Delta.Content)
					sink(chunk.Delta.Content)
				}
			}
			if sb.Len() == 0 {
				o.recordStage(StageSynthesize, "error", time.Since(stageStart))
				return "", types.NewError(types.ErrStageFailed, "empty synthesis stream")
			}
			o.recordStage(StageSynthesize, "ok", time.Since(stageStart))
			return sb.String(), nil
		}
		logger.Warn("stream setup failed, falling back to completion", zap.Error(err))
	}

	resp, err := o.provider.Completion(stageCtx, chatReq)
	if err != nil {
		o.recordStage(StageSynthesize, "error", time.Since(stageStart))
		return "", err
	}
	answer := llm.FirstContent(resp)
	if strings.TrimSpace(answer) == "" {
		o.recordStage(StageSynthesize, "error", time.Since(stageStart))
		return "", types.NewError(types.ErrStageFailed, "empty synthesis response")
	}
	if sink != nil {
		sink(answer)
	}
	o.recordStage(StageSynthesize, "ok", time.Since(stageStart))
	return answer, nil
}

// buildChatRequest 组装专家请求：系统提示 + 会话历史 + 当前输入.
func (o *Orchestrator) buildChatRequest(system, input string, history []types.Message) *llm.ChatRequest {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: input})

	return &llm.ChatRequest{
		Model:       o.cfg.Model,
		Messages:    messages,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}
}

func (o *Orchestrator) recordStage(stage Stage, status string, d time.Duration) {
	if o.metrics != nil {
		o.metrics.RecordStage(string(stage), status, d)
	}
}
