package memory

import (
	"sort"

	"github.com/knostra/knostrad/internal/domain"
)

// Map iteration order is random; lists sort to match the SQL store's
// ordering so both backends behave identically under pagination.

func sortMarkets(markets []domain.Market) {
	sort.Slice(markets, func(i, j int) bool {
		if !markets[i].CreatedAt.Equal(markets[j].CreatedAt) {
			return markets[i].CreatedAt.After(markets[j].CreatedAt)
		}
		return markets[i].MarketID > markets[j].MarketID
	})
}

func sortBets(bets []domain.Bet) {
	sort.Slice(bets, func(i, j int) bool {
		if !bets[i].CreatedAt.Equal(bets[j].CreatedAt) {
			return bets[i].CreatedAt.Before(bets[j].CreatedAt)
		}
		return bets[i].User < bets[j].User
	})
}

func sortJobs(jobs []domain.ComputeJob) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].SubmittedAt.Before(jobs[j].SubmittedAt)
	})
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	offset := opts.Offset
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}
