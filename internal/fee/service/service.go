package service

import (
	"reflect"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/clock"
	"github.com/smallbiznis/feeledger/internal/config"
	"github.com/smallbiznis/feeledger/internal/fee/academicyear"
	"github.com/smallbiznis/feeledger/internal/fee/aggregator"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/fee/matcher"
	"github.com/smallbiznis/feeledger/internal/observability/metrics"
	"github.com/smallbiznis/feeledger/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const tracerName = "feeledger/fee"

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Repo       feedomain.Repository
	Clock      clock.Clock
	Rules      *config.FeeRulesHolder
	Cache      feedomain.SummaryCache
	GenID      *snowflake.Node
	PDF        pdf.Provider
	Audit      auditdomain.Service `optional:"true"`
	FeeMetrics *metrics.FeeMetrics `optional:"true"`
	Metrics    *metrics.Metrics    `optional:"true"`
}

// Service implements the fee read facade and the payment, discount,
// structure and document write paths on one record store.
type Service struct {
	log        *zap.Logger
	repo       feedomain.Repository
	clock      clock.Clock
	rules      *config.FeeRulesHolder
	cache      feedomain.SummaryCache
	genID      *snowflake.Node
	pdf        pdf.Provider
	audit      auditdomain.Service
	feeMetrics *metrics.FeeMetrics
	metrics    *metrics.Metrics
	validate   *validator.Validate

	school      config.SchoolConfig
	defaultYear string
}

func New(p Params) *Service {
	return &Service{
		log:         p.Log.Named("fee.service"),
		repo:        p.Repo,
		clock:       p.Clock,
		rules:       p.Rules,
		cache:       p.Cache,
		genID:       p.GenID,
		pdf:         p.PDF,
		audit:       p.Audit,
		feeMetrics:  p.FeeMetrics,
		metrics:     p.Metrics,
		validate:    newValidator(),
		school:      p.Config.School,
		defaultYear: academicyear.Normalize(p.Config.DefaultAcademicYear),
	}
}

func (s *Service) aggregatorOptions(rules config.FeeRules) aggregator.Options {
	return aggregator.Options{
		Matcher:               matcherFor(rules),
		MatchYearlessPayments: rules.MatchYearlessPayments,
		DefaultAcademicYear:   s.defaultYear,
	}
}

func matcherFor(rules config.FeeRules) *matcher.Matcher {
	groups := make([]matcher.SynonymGroup, 0, len(rules.Synonyms))
	for _, rule := range rules.Synonyms {
		groups = append(groups, matcher.SynonymGroup{Concept: rule.Concept, Keywords: rule.Keywords})
	}
	return matcher.New(groups, rules.MinSubstringLength)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, feedomain.ErrInvalidID
	}
	return id, nil
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
