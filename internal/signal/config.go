package signal

// Config holds the weights and thresholds of the confluence rule set.
// The weights are policy, not incidental: they are fixed for a deployment
// but live here so tests and tuning can override them.
type Config struct {
	// Factor weights (points added to the bullish or bearish side).
	WeightTrendAlignment float64 // swing-frame EMA alignment
	WeightDailyTrend     float64 // daily-frame confirmation
	WeightADX            float64 // trend strength agreeing with direction
	WeightRSIExtreme     float64 // RSI in an extreme zone
	WeightStochRSICross  float64 // StochRSI crossover out of an extreme
	WeightVolumeSurge    float64 // volume surge on the prevailing trend side
	WeightFunding        float64 // funding-rate skew
	WeightDivergence     float64 // multiplied by divergence strength
	WeightPivot          float64 // proximity to pivot support/resistance
	WeightPercentB       float64 // Bollinger %B extremes

	// Recommendation buckets for the net score (bullish - bearish).
	StrongBuyThreshold  float64
	BuyThreshold        float64
	SellThreshold       float64
	StrongSellThreshold float64

	// Indicator thresholds.
	RSIOverbought        float64
	RSIOversold          float64
	StochExtremeHigh     float64
	StochExtremeLow      float64
	ADXStrongTrend       float64
	VolumeSurgeRatio     float64 // surge when last volume > ratio * average
	FundingSkewThreshold float64 // per funding interval, as a fraction
	PivotProximityFrac   float64 // fraction of price counted as "near" a pivot
	PercentBHigh         float64
	PercentBLow          float64

	// Indicator periods.
	EMAFastPeriod      int
	EMASlowPeriod      int
	RSIPeriod          int
	ATRPeriod          int
	ADXPeriod          int
	StochPeriod        int
	StochKSmooth       int
	StochDSmooth       int
	BollingerPeriod    int
	BollingerStdDev    float64
	VolumeAvgPeriod    int
	DivergenceLookback int

	// Suggested protection levels.
	StopLossATRMult    float64 // stop distance in ATRs below price
	TakeProfitATRMult  float64 // target distance in ATRs above price
	MinRewardRiskRatio float64 // floor for the suggested take-profit

	// Series fetched per evaluation, oldest first.
	IntradayTimeframe string
	SwingTimeframe    string
	DailyTimeframe    string
	IntradayLimit     int
	SwingLimit        int
	DailyLimit        int
}

// DefaultConfig returns the production rule set.
func DefaultConfig() Config {
	return Config{
		WeightTrendAlignment: 2.0,
		WeightDailyTrend:     1.5,
		WeightADX:            1.5,
		WeightRSIExtreme:     1.0,
		WeightStochRSICross:  1.0,
		WeightVolumeSurge:    0.5,
		WeightFunding:        0.5,
		WeightDivergence:     1.5,
		WeightPivot:          1.0,
		WeightPercentB:       0.5,

		StrongBuyThreshold:  5.0,
		BuyThreshold:        2.0,
		SellThreshold:       -2.0,
		StrongSellThreshold: -5.0,

		RSIOverbought:        70,
		RSIOversold:          30,
		StochExtremeHigh:     80,
		StochExtremeLow:      20,
		ADXStrongTrend:       25,
		VolumeSurgeRatio:     1.2,
		FundingSkewThreshold: 0.0001,
		PivotProximityFrac:   0.005,
		PercentBHigh:         0.95,
		PercentBLow:          0.05,

		EMAFastPeriod:      9,
		EMASlowPeriod:      21,
		RSIPeriod:          14,
		ATRPeriod:          14,
		ADXPeriod:          14,
		StochPeriod:        14,
		StochKSmooth:       3,
		StochDSmooth:       3,
		BollingerPeriod:    20,
		BollingerStdDev:    2,
		VolumeAvgPeriod:    20,
		DivergenceLookback: 14,

		StopLossATRMult:    1.5,
		TakeProfitATRMult:  2.0,
		MinRewardRiskRatio: 1.5,

		IntradayTimeframe: "15m",
		SwingTimeframe:    "4h",
		DailyTimeframe:    "1d",
		IntradayLimit:     96,
		SwingLimit:        120,
		DailyLimit:        60,
	}
}
