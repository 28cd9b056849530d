// internal/pipeline/domain-classifier/handler.go
package domainclassifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/logger"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/common/textutil"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/llm"
	"github.com/rkhurana000/skillstrong-pro-sub000/internal/models"
)

const (
	TaskType = "domain-classifier"

	verdictIn  = "IN"
	verdictOut = "OUT"
)

var (
	ErrClassificationFailed = errors.New("DOMAIN_CLASSIFICATION_FAILED")
)

const classifyInstruction = `You are a strict topic filter for a manufacturing career coach.
Decide whether the user's message is about manufacturing careers: skilled trades, production and
technician jobs, training programs, apprenticeships, certifications, pay or outlook in manufacturing.
Answer with exactly one word: IN or OUT.`

// RedirectMessage is returned for out-of-domain questions.
const RedirectMessage = `I'm your manufacturing career coach, so I stick to careers in modern manufacturing. Here are some areas I can help with:

- **CNC machining** and precision manufacturing
- **Welding** and metal fabrication
- **Robotics** and automation technology
- **Industrial maintenance** and mechatronics
- **Quality control** and inspection
- **Additive manufacturing** (3D printing)

Ask me about any of these, like what the work looks like, how to get trained, or what it pays.`

// manufacturingKeywords covers trade names, credentialing bodies and processes.
// Input is folded first, so patterns are lower case and accent free.
var manufacturingKeywords = regexp.MustCompile(`\b(` +
	`manufactur\w*|machinist\w*|machining|cnc|lathe\w*|millwright\w*|milling|` +
	`weld\w*|welder\w*|solder\w*|brazing|fabricat\w*|ironwork\w*|sheet metal|` +
	`robot\w*|cobot\w*|mechatronic\w*|automation|plc\w*|` +
	`assembler\w*|assembly line|production (worker|technician|line)|` +
	`quality (control|inspector|inspection|assurance|technician)|metrolog\w*|cmm|gd&t|` +
	`tool and die|tool & die|toolmak\w*|die maker\w*|moldmak\w*|injection mold\w*|` +
	`industrial maintenance|maintenance technician\w*|maintenance mechanic\w*|` +
	`additive|3d print\w*|cad/cam|` +
	`nims|american welding society|aws certif\w*|aws d1\.\d|msscs?|six sigma|lean manufacturing|` +
	`apprentice\w*|trade school\w*|skilled trade\w*` +
	`)\b`)

// MatchesManufacturingKeywords is the cheap first pass: a hit means
// in-domain without asking a model.
func MatchesManufacturingKeywords(text string) bool {
	return manufacturingKeywords.MatchString(textutil.Fold(text))
}

// IsInVerdict reads a model reply. Only an IN prefix counts.
func IsInVerdict(raw string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(raw)), verdictIn)
}

type Handler struct {
	config      *Config
	llm         *llm.Registry
	redisClient *redis.Client
	logger      logger.Logger
}

func NewHandler(config *Config, registry *llm.Registry, redisClient *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config:      config,
		llm:         registry,
		redisClient: redisClient,
		logger:      log.WithFields(map[string]interface{}{"stage": TaskType}),
	}
}

// Classify reports whether utterance is about manufacturing careers. On a
// model failure it returns false together with the error; callers treat that
// as out of domain.
func (h *Handler) Classify(ctx context.Context, utterance, provider string) (bool, error) {
	out, err := h.execute(ctx, &Input{Utterance: utterance, Provider: provider})
	if err != nil {
		return false, err
	}
	return out.InDomain, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	text := strings.TrimSpace(input.Utterance)
	if text == "" {
		return &Output{InDomain: false, Source: SourceEmpty}, nil
	}

	if MatchesManufacturingKeywords(text) {
		return &Output{InDomain: true, Source: SourceKeyword}, nil
	}

	key := cacheKey(text)
	if h.redisClient != nil {
		if val, err := h.redisClient.Get(ctx, key).Result(); err == nil {
			return &Output{InDomain: val == verdictIn, Source: SourceCache}, nil
		}
	}

	provider, err := h.llm.Get(input.Provider)
	if err != nil {
		return &Output{Source: SourceModel}, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	raw, err := provider.Complete(callCtx, &llm.Request{
		Messages: []models.Message{
			llm.System(classifyInstruction),
			llm.User(text),
		},
		Temperature: 0,
		MaxTokens:   3,
	})
	if err != nil {
		h.logger.Warn("classification call failed", map[string]interface{}{
			"provider": provider.Name(),
			"error":    err.Error(),
		})
		return &Output{Source: SourceModel}, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	in := IsInVerdict(raw)
	if h.redisClient != nil && h.config.CacheTTL > 0 {
		verdict := verdictOut
		if in {
			verdict = verdictIn
		}
		if err := h.redisClient.Set(ctx, key, verdict, h.config.CacheTTL).Err(); err != nil {
			h.logger.Debug("verdict cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}

	h.logger.Debug("classified by model", map[string]interface{}{
		"provider": provider.Name(),
		"inDomain": in,
	})
	return &Output{InDomain: in, Source: SourceModel}, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(textutil.Fold(strings.Join(strings.Fields(text), " "))))
	return "chat:domain:" + hex.EncodeToString(sum[:16])
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
