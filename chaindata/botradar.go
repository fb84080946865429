package chaindata

import (
	"sort"
	"time"
)

// PatternKind identifies one of the four Bot-Radar detectors.
type PatternKind string

const (
	PatternSandwich PatternKind = "sandwich"
	PatternBurst    PatternKind = "burst"
	PatternCluster  PatternKind = "cluster"
	PatternFrontrun PatternKind = "frontrun"
)

// RadarLevel grades the aggregate bot-activity risk.
type RadarLevel string

const (
	RadarClear    RadarLevel = "clear"
	RadarElevated RadarLevel = "elevated"
	RadarHigh     RadarLevel = "high"
	RadarSevere   RadarLevel = "severe"
)

// PatternMatch is one detected occurrence of a pattern.
type PatternMatch struct {
	Kind       PatternKind `json:"kind"`
	Confidence float64     `json:"confidence"`
	TxHashes   []string    `json:"txHashes"`
	Note       string      `json:"note"`
}

// BotRadarResult aggregates all detected patterns for a window.
type BotRadarResult struct {
	Matches   []PatternMatch `json:"matches"`
	RiskScore float64        `json:"riskScore"`
	Level     RadarLevel     `json:"level"`
}

const (
	weightSandwich = 0.30
	weightCluster  = 0.20
	weightFrontrun = 0.20
	weightBurst    = 0.15
)

// burstThreshold and burstWindow define pattern (b): N transactions from
// one sender inside a short window.
const (
	burstThreshold = 4
	burstWindow    = 10 * time.Second
	clusterWindow  = 30 * time.Second
	sandwichWindow = 1 * time.Second
	frontrunWindow = 500 * time.Millisecond
	valueFloorWei  = 1
)

// DetectBotActivity scans a chronologically-sorted transaction window
// for the four Bot-Radar pattern classes and produces an aggregate risk
// score weighted {sandwich 0.30, cluster 0.20, burst 0.15, frontrun 0.20}.
func DetectBotActivity(txs []Transaction) BotRadarResult {
	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	var matches []PatternMatch
	matches = append(matches, detectSandwich(sorted)...)
	matches = append(matches, detectBurst(sorted)...)
	matches = append(matches, detectCluster(sorted)...)
	matches = append(matches, detectFrontrun(sorted)...)

	var score float64
	seen := map[PatternKind]bool{}
	for _, m := range matches {
		if seen[m.Kind] {
			continue
		}
		seen[m.Kind] = true
		switch m.Kind {
		case PatternSandwich:
			score += weightSandwich
		case PatternCluster:
			score += weightCluster
		case PatternBurst:
			score += weightBurst
		case PatternFrontrun:
			score += weightFrontrun
		}
	}
	if score > 1 {
		score = 1
	}

	return BotRadarResult{Matches: matches, RiskScore: score, Level: gradeRadar(score)}
}

func gradeRadar(score float64) RadarLevel {
	switch {
	case score == 0:
		return RadarClear
	case score < 0.30:
		return RadarElevated
	case score < 0.60:
		return RadarHigh
	default:
		return RadarSevere
	}
}

// detectSandwich finds triples where the 1st and 3rd swap share a
// sender, the 2nd is a different sender, all three lie inside a 1s
// window, and the 1st/3rd exceed the value floor.
func detectSandwich(txs []Transaction) []PatternMatch {
	var matches []PatternMatch
	for i := 0; i+2 < len(txs); i++ {
		a, b, c := txs[i], txs[i+1], txs[i+2]
		if a.Sender != c.Sender || b.Sender == a.Sender {
			continue
		}
		if c.Timestamp.Sub(a.Timestamp) > sandwichWindow {
			continue
		}
		if a.ValueWei < valueFloorWei || c.ValueWei < valueFloorWei {
			continue
		}
		matches = append(matches, PatternMatch{
			Kind:       PatternSandwich,
			Confidence: 0.85,
			TxHashes:   []string{a.Hash.Hex(), b.Hash.Hex(), c.Hash.Hex()},
			Note:       "MEV protection recommended",
		})
	}
	return matches
}

// detectBurst finds ≥ burstThreshold transactions from one sender
// inside burstWindow.
func detectBurst(txs []Transaction) []PatternMatch {
	var matches []PatternMatch
	bySender := map[string][]Transaction{}
	for _, tx := range txs {
		key := tx.Sender.Hex()
		bySender[key] = append(bySender[key], tx)
	}
	for sender, group := range bySender {
		for i := 0; i < len(group); i++ {
			count := 1
			var hashes []string
			hashes = append(hashes, group[i].Hash.Hex())
			for j := i + 1; j < len(group); j++ {
				if group[j].Timestamp.Sub(group[i].Timestamp) > burstWindow {
					break
				}
				count++
				hashes = append(hashes, group[j].Hash.Hex())
			}
			if count >= burstThreshold {
				matches = append(matches, PatternMatch{
					Kind:       PatternBurst,
					Confidence: 0.75,
					TxHashes:   hashes,
					Note:       "burst of " + sender + " transactions",
				})
				break
			}
		}
	}
	return matches
}

// detectCluster finds ≥ 3 distinct senders performing same-direction
// swaps inside clusterWindow.
func detectCluster(txs []Transaction) []PatternMatch {
	var matches []PatternMatch
	for i := 0; i < len(txs); i++ {
		senders := map[string]bool{txs[i].Sender.Hex(): true}
		var hashes []string
		hashes = append(hashes, txs[i].Hash.Hex())
		for j := i + 1; j < len(txs); j++ {
			if txs[j].Timestamp.Sub(txs[i].Timestamp) > clusterWindow {
				break
			}
			if txs[j].Direction != txs[i].Direction {
				continue
			}
			senders[txs[j].Sender.Hex()] = true
			hashes = append(hashes, txs[j].Hash.Hex())
		}
		if len(senders) >= 3 {
			matches = append(matches, PatternMatch{
				Kind:       PatternCluster,
				Confidence: 0.70,
				TxHashes:   hashes,
				Note:       "coordinated same-direction cluster",
			})
			break
		}
	}
	return matches
}

// detectFrontrun finds two consecutive swaps within 500ms where the
// first is ≥5x the second in value and from a different sender.
func detectFrontrun(txs []Transaction) []PatternMatch {
	var matches []PatternMatch
	for i := 0; i+1 < len(txs); i++ {
		a, b := txs[i], txs[i+1]
		if b.Timestamp.Sub(a.Timestamp) > frontrunWindow {
			continue
		}
		if a.Sender == b.Sender {
			continue
		}
		if b.ValueWei == 0 || float64(a.ValueWei) < 5*float64(b.ValueWei) {
			continue
		}
		matches = append(matches, PatternMatch{
			Kind:       PatternFrontrun,
			Confidence: 0.65,
			TxHashes:   []string{a.Hash.Hex(), b.Hash.Hex()},
			Note:       "possible frontrun",
		})
	}
	return matches
}
