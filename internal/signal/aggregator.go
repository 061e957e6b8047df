package signal

import (
	"context"
	"fmt"
	"math"

	"leverbot/internal/domain"
	"leverbot/internal/indicators"
	"leverbot/internal/ports"
)

// MarketData is everything the aggregator consumes for one symbol in one
// evaluation cycle. Series are oldest-to-newest and immutable once fetched.
type MarketData struct {
	Intraday []*domain.Kline
	Swing    []*domain.Kline
	Daily    []*domain.Kline

	FundingRate  float64
	OpenInterest float64
}

// Score is the confluence outcome for one symbol: weighted bullish and
// bearish points, the contributing factors in evaluation order, the
// recommendation bucket, and suggested protection levels. It is derived
// state, recomputed every cycle and only logged for audit.
type Score struct {
	Symbol         domain.Symbol
	Price          float64
	BullishPoints  float64
	BearishPoints  float64
	Factors        []string
	Recommendation domain.Recommendation

	SuggestedStopLoss   float64
	SuggestedTakeProfit float64
}

// Net returns bullish minus bearish points.
func (s *Score) Net() float64 {
	return s.BullishPoints - s.BearishPoints
}

// Aggregator turns multi-timeframe market data into a confluence score.
type Aggregator struct {
	cfg     Config
	gateway ports.ExchangeGateway
	logger  ports.Logger
}

// NewAggregator creates a market signal aggregator.
func NewAggregator(cfg Config, gateway ports.ExchangeGateway, logger ports.Logger) (*Aggregator, error) {
	if gateway == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Aggregator")
	}
	if cfg.EMAFastPeriod >= cfg.EMASlowPeriod {
		return nil, fmt.Errorf("EMA fast period (%d) must be less than slow period (%d)", cfg.EMAFastPeriod, cfg.EMASlowPeriod)
	}
	return &Aggregator{cfg: cfg, gateway: gateway, logger: logger}, nil
}

// Fetch pulls the three timeframe series plus open interest and funding
// rate through the gateway. Fetches are read-only and safe to run
// concurrently across symbols.
func (a *Aggregator) Fetch(ctx context.Context, symbol domain.Symbol) (*MarketData, error) {
	md := &MarketData{}
	var err error

	if md.Intraday, err = a.gateway.GetKlines(ctx, symbol, domain.Timeframe(a.cfg.IntradayTimeframe), a.cfg.IntradayLimit); err != nil {
		return nil, fmt.Errorf("fetch intraday klines: %w", err)
	}
	if md.Swing, err = a.gateway.GetKlines(ctx, symbol, domain.Timeframe(a.cfg.SwingTimeframe), a.cfg.SwingLimit); err != nil {
		return nil, fmt.Errorf("fetch swing klines: %w", err)
	}
	if md.Daily, err = a.gateway.GetKlines(ctx, symbol, domain.Timeframe(a.cfg.DailyTimeframe), a.cfg.DailyLimit); err != nil {
		return nil, fmt.Errorf("fetch daily klines: %w", err)
	}
	if md.FundingRate, err = a.gateway.GetFundingRate(ctx, symbol); err != nil {
		return nil, fmt.Errorf("fetch funding rate: %w", err)
	}
	if md.OpenInterest, err = a.gateway.GetOpenInterest(ctx, symbol); err != nil {
		return nil, fmt.Errorf("fetch open interest: %w", err)
	}
	return md, nil
}

// Evaluate runs the fixed additive rule set over already-fetched market
// data. The swing frame drives trend/momentum factors, the daily frame
// confirms trend and supplies pivots, and the intraday frame drives the
// short oscillator and volume factors.
func (a *Aggregator) Evaluate(ctx context.Context, symbol domain.Symbol, md *MarketData) (*Score, error) {
	if len(md.Swing) < a.cfg.EMASlowPeriod+1 || len(md.Daily) < a.cfg.EMASlowPeriod+1 {
		return nil, fmt.Errorf("not enough market data for %s (swing=%d daily=%d)", symbol, len(md.Swing), len(md.Daily))
	}

	swingCloses := domain.Closes(md.Swing)
	price := swingCloses[len(swingCloses)-1]

	score := &Score{Symbol: symbol, Price: price}
	trendUp, err := a.scoreTrend(score, swingCloses, domain.Closes(md.Daily))
	if err != nil {
		return nil, err
	}
	if err := a.scoreSwingMomentum(score, md.Swing, swingCloses); err != nil {
		return nil, err
	}
	a.scoreIntraday(score, md.Intraday, trendUp)
	a.scoreFunding(score, md.FundingRate)

	pivots := a.dailyPivots(md.Daily)
	a.scorePivot(score, price, pivots)

	if err := a.suggestLevels(score, md.Swing, price, pivots); err != nil {
		return nil, err
	}

	score.Recommendation = BucketRecommendation(score.Net(), a.cfg)
	// Open interest carries no weight in the rule set; it is recorded here
	// as audit context alongside the score.
	a.logger.Info(ctx, "Confluence score computed", map[string]interface{}{
		"symbol":         symbol,
		"bullish":        score.BullishPoints,
		"bearish":        score.BearishPoints,
		"net":            score.Net(),
		"recommendation": score.Recommendation,
		"factors":        score.Factors,
		"openInterest":   md.OpenInterest,
		"fundingRate":    md.FundingRate,
	})
	return score, nil
}

// BucketRecommendation maps a net score onto the discrete recommendation
// buckets: >= strong-buy threshold STRONG_BUY, >= buy threshold BUY,
// <= strong-sell threshold STRONG_SELL, <= sell threshold SELL, else NEUTRAL.
func BucketRecommendation(net float64, cfg Config) domain.Recommendation {
	switch {
	case net >= cfg.StrongBuyThreshold:
		return domain.StrongBuy
	case net >= cfg.BuyThreshold:
		return domain.RecBuy
	case net <= cfg.StrongSellThreshold:
		return domain.StrongSell
	case net <= cfg.SellThreshold:
		return domain.RecSell
	default:
		return domain.Neutral
	}
}

func (s *Score) bullish(points float64, factor string) {
	s.BullishPoints += points
	s.Factors = append(s.Factors, factor)
}

func (s *Score) bearish(points float64, factor string) {
	s.BearishPoints += points
	s.Factors = append(s.Factors, factor)
}

// scoreTrend evaluates swing-frame EMA alignment and daily confirmation.
// Returns whether the prevailing swing trend is up.
func (a *Aggregator) scoreTrend(score *Score, swingCloses, dailyCloses []float64) (bool, error) {
	fast, err := indicators.EMA(swingCloses, a.cfg.EMAFastPeriod)
	if err != nil {
		return false, err
	}
	slow, err := indicators.EMA(swingCloses, a.cfg.EMASlowPeriod)
	if err != nil {
		return false, err
	}
	trendUp := fast[len(fast)-1] > slow[len(slow)-1]
	if trendUp {
		score.bullish(a.cfg.WeightTrendAlignment, "swing trend up (fast EMA above slow)")
	} else {
		score.bearish(a.cfg.WeightTrendAlignment, "swing trend down (fast EMA below slow)")
	}

	dFast, err := indicators.EMA(dailyCloses, a.cfg.EMAFastPeriod)
	if err != nil {
		return trendUp, err
	}
	dSlow, err := indicators.EMA(dailyCloses, a.cfg.EMASlowPeriod)
	if err != nil {
		return trendUp, err
	}
	if dFast[len(dFast)-1] > dSlow[len(dSlow)-1] {
		score.bullish(a.cfg.WeightDailyTrend, "daily trend confirms up")
	} else {
		score.bearish(a.cfg.WeightDailyTrend, "daily trend confirms down")
	}
	return trendUp, nil
}

// scoreSwingMomentum evaluates ADX agreement, RSI extremes, divergence and
// Bollinger %B on the swing frame. Indicators that lack data are skipped
// rather than failing the whole evaluation.
func (a *Aggregator) scoreSwingMomentum(score *Score, swing []*domain.Kline, closes []float64) error {
	highs := domain.Highs(swing)
	lows := domain.Lows(swing)

	if adx, err := indicators.ADX(highs, lows, closes, a.cfg.ADXPeriod); err == nil {
		last := adx[len(adx)-1]
		if last > a.cfg.ADXStrongTrend {
			plusDI, minusDI, diErr := indicators.DirectionalIndexes(highs, lows, closes, a.cfg.ADXPeriod)
			if diErr == nil {
				if plusDI > minusDI {
					score.bullish(a.cfg.WeightADX, fmt.Sprintf("strong trend (ADX %.1f) with +DI dominant", last))
				} else {
					score.bearish(a.cfg.WeightADX, fmt.Sprintf("strong trend (ADX %.1f) with -DI dominant", last))
				}
			}
		}
	}

	rsi, err := indicators.RSI(closes, a.cfg.RSIPeriod)
	if err != nil {
		return err
	}
	lastRSI := rsi[len(rsi)-1]
	if lastRSI <= a.cfg.RSIOversold {
		score.bullish(a.cfg.WeightRSIExtreme, fmt.Sprintf("RSI oversold (%.1f)", lastRSI))
	} else if lastRSI >= a.cfg.RSIOverbought {
		score.bearish(a.cfg.WeightRSIExtreme, fmt.Sprintf("RSI overbought (%.1f)", lastRSI))
	}

	if div, err := indicators.RSIDivergence(closes[len(closes)-len(rsi):], rsi, a.cfg.DivergenceLookback); err == nil {
		points := a.cfg.WeightDivergence * div.Strength
		if div.IsBullish() {
			score.bullish(points, fmt.Sprintf("%s divergence (strength %.2f)", div.Type, div.Strength))
		} else if div.IsBearish() {
			score.bearish(points, fmt.Sprintf("%s divergence (strength %.2f)", div.Type, div.Strength))
		}
	}

	if bands, err := indicators.Bollinger(closes, a.cfg.BollingerPeriod, a.cfg.BollingerStdDev); err == nil {
		last := len(bands.Upper) - 1
		pb := indicators.PercentB(closes[len(closes)-1], bands.Upper[last], bands.Lower[last])
		if pb <= a.cfg.PercentBLow {
			score.bullish(a.cfg.WeightPercentB, fmt.Sprintf("price at lower band (%%B %.2f)", pb))
		} else if pb >= a.cfg.PercentBHigh {
			score.bearish(a.cfg.WeightPercentB, fmt.Sprintf("price at upper band (%%B %.2f)", pb))
		}
	}
	return nil
}

// scoreIntraday evaluates the StochRSI crossover and volume surge factors
// on the short frame.
func (a *Aggregator) scoreIntraday(score *Score, intraday []*domain.Kline, trendUp bool) {
	if len(intraday) == 0 {
		return
	}
	closes := domain.Closes(intraday)

	if k, d, err := indicators.StochRSI(closes, a.cfg.RSIPeriod, a.cfg.StochPeriod, a.cfg.StochKSmooth, a.cfg.StochDSmooth); err == nil && len(k) >= 2 {
		kPrev, kCur := k[len(k)-2], k[len(k)-1]
		dPrev, dCur := d[len(d)-2], d[len(d)-1]
		if kPrev <= dPrev && kCur > dCur && kPrev <= a.cfg.StochExtremeLow {
			score.bullish(a.cfg.WeightStochRSICross, "StochRSI crossed up out of oversold")
		} else if kPrev >= dPrev && kCur < dCur && kPrev >= a.cfg.StochExtremeHigh {
			score.bearish(a.cfg.WeightStochRSICross, "StochRSI crossed down out of overbought")
		}
	}

	volumes := domain.Volumes(intraday)
	if avg, err := indicators.SMA(volumes, a.cfg.VolumeAvgPeriod); err == nil {
		lastVol := volumes[len(volumes)-1]
		lastAvg := avg[len(avg)-1]
		if lastAvg > 0 && lastVol > a.cfg.VolumeSurgeRatio*lastAvg {
			// A surge reinforces whichever side the trend already favors.
			if trendUp {
				score.bullish(a.cfg.WeightVolumeSurge, fmt.Sprintf("volume surge (%.0f%% of average) on uptrend", 100*lastVol/lastAvg))
			} else {
				score.bearish(a.cfg.WeightVolumeSurge, fmt.Sprintf("volume surge (%.0f%% of average) on downtrend", 100*lastVol/lastAvg))
			}
		}
	}
}

// scoreFunding counts funding skew: positive funding means longs pay and
// weighs bearish, negative funding weighs bullish.
func (a *Aggregator) scoreFunding(score *Score, rate float64) {
	if rate > a.cfg.FundingSkewThreshold {
		score.bearish(a.cfg.WeightFunding, fmt.Sprintf("positive funding skew (%.4f%%)", 100*rate))
	} else if rate < -a.cfg.FundingSkewThreshold {
		score.bullish(a.cfg.WeightFunding, fmt.Sprintf("negative funding skew (%.4f%%)", 100*rate))
	}
}

// dailyPivots computes pivot levels from the prior completed daily bar.
func (a *Aggregator) dailyPivots(daily []*domain.Kline) indicators.PivotLevels {
	// The last entry may be the bar still forming; use the one before it.
	prior := daily[len(daily)-2]
	return indicators.PivotPoints(prior.High, prior.Low, prior.Close)
}

// scorePivot counts proximity to pivot support (bullish) or resistance
// (bearish).
func (a *Aggregator) scorePivot(score *Score, price float64, pivots indicators.PivotLevels) {
	near := a.cfg.PivotProximityFrac * price
	if math.Abs(price-pivots.S1) <= near {
		score.bullish(a.cfg.WeightPivot, fmt.Sprintf("price near pivot support S1 (%.2f)", pivots.S1))
	} else if math.Abs(price-pivots.R1) <= near {
		score.bearish(a.cfg.WeightPivot, fmt.Sprintf("price near pivot resistance R1 (%.2f)", pivots.R1))
	}
}

// suggestLevels derives the suggested stop-loss and take-profit.
//
// The stop is the more conservative (smaller-loss, i.e. higher) of pivot S1
// and 1.5 ATR below price; S1 is only eligible when it actually sits below
// price. The take-profit starts from the tighter of pivot R1 and 2 ATR
// above price, then is raised to keep at least the minimum reward:risk
// ratio versus the suggested stop.
func (a *Aggregator) suggestLevels(score *Score, swing []*domain.Kline, price float64, pivots indicators.PivotLevels) error {
	atr, err := indicators.ATR(domain.Highs(swing), domain.Lows(swing), domain.Closes(swing), a.cfg.ATRPeriod)
	if err != nil {
		return err
	}
	lastATR := atr[len(atr)-1]

	stop := price - a.cfg.StopLossATRMult*lastATR
	if pivots.S1 < price && pivots.S1 > stop {
		stop = pivots.S1
	}

	target := price + a.cfg.TakeProfitATRMult*lastATR
	if pivots.R1 > price && pivots.R1 < target {
		target = pivots.R1
	}
	if minTarget := price + a.cfg.MinRewardRiskRatio*(price-stop); target < minTarget {
		target = minTarget
	}

	score.SuggestedStopLoss = stop
	score.SuggestedTakeProfit = target
	return nil
}
