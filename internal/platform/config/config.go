package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	PostgresDSN  string
	KafkaBrokers []string

	// Commission computation switches. ComputeMode is either fixed_amount
	// or dynamic_percentage and applies to commissions and the reward pool
	// alike.
	ComputeMode                string
	EnableSeniorDistributor    bool
	EnableSelfCommission       bool
	EnableSelfCommissionOffset bool
	SelfOccupiesFirstLevel     bool
	GroupLeaderPercentage      decimal.Decimal
	GroupQuantityLimit         int
	ChainLevelLimit            int

	// Monthly reward close.
	MonthlyCloseCronSpec string
	RewardConditionID    string
	RewardStrategyID     string
	RewardMinOrders      int

	Currency string
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "arbor"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	mode := strings.TrimSpace(os.Getenv("COMPUTE_MODE"))
	if mode == "" {
		mode = "dynamic_percentage"
	}
	cronSpec := strings.TrimSpace(os.Getenv("MONTHLY_CLOSE_CRON"))
	if cronSpec == "" {
		// 02:00 on the first of every month.
		cronSpec = "0 2 1 * *"
	}
	currency := strings.TrimSpace(os.Getenv("CURRENCY"))
	if currency == "" {
		currency = "CNY"
	}

	return Config{
		ServiceName:  service,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		ComputeMode:                mode,
		EnableSeniorDistributor:    envBool("ENABLE_SENIOR_DISTRIBUTOR", true),
		EnableSelfCommission:       envBool("ENABLE_SELF_COMMISSION", false),
		EnableSelfCommissionOffset: envBool("ENABLE_SELF_COMMISSION_OFFSET", false),
		SelfOccupiesFirstLevel:     envBool("SELF_OCCUPIES_FIRST_LEVEL", true),
		GroupLeaderPercentage:      envDecimal("GROUP_LEADER_PERCENTAGE", decimal.NewFromInt(10)),
		GroupQuantityLimit:         envInt("GROUP_QUANTITY_LIMIT", 3),
		ChainLevelLimit:            envInt("CHAIN_LEVEL_LIMIT", 10),

		MonthlyCloseCronSpec: cronSpec,
		RewardConditionID:    envString("REWARD_CONDITION_ID", "order_quantity"),
		RewardStrategyID:     envString("REWARD_STRATEGY_ID", "by_achievement"),
		RewardMinOrders:      envInt("REWARD_MIN_ORDERS", 1),

		Currency: currency,
	}, nil
}

func envString(name string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDecimal(name string, fallback decimal.Decimal) decimal.Decimal {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
