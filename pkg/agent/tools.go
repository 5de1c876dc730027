package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/phenomenon0/chatbet-agent/pkg/bets"
	"github.com/phenomenon0/chatbet-agent/pkg/catalog"
	"github.com/phenomenon0/chatbet-agent/pkg/odds"
	"github.com/phenomenon0/chatbet-agent/pkg/schedule"
	"github.com/phenomenon0/chatbet-agent/pkg/session"
)

// fixtureListLimit caps how many upcoming fixtures a team lookup
// renders.
const fixtureListLimit = 5

// Deps are the components the tool set dispatches to.
type Deps struct {
	Catalog   *catalog.Catalog
	Schedule  *schedule.Index
	Resolver  *odds.Resolver
	Analyzer  *odds.Analyzer
	Simulator *bets.Simulator
	Log       *logrus.Entry
}

// NewToolset builds the registry of every conversational operation.
func NewToolset(d Deps) *Registry {
	if d.Log == nil {
		d.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return NewRegistry(
		d.fixturesByDate(),
		d.findTeamFixture(),
		d.teamsByTournament(),
		d.oddsForMatch(),
		d.oddsForOutcome(),
		d.dailyOddsAnalysis(),
		d.winningsForMatch(),
		d.matchRecommendation(),
		d.bettingRecommendation(),
		d.userBalance(),
		d.placeBet(),
	)
}

func (d Deps) fixturesByDate() *Tool {
	return &Tool{
		Name:        "get_fixtures_by_date",
		Description: "Find all matches on a specific or relative date. Understands queries like \"tomorrow\", \"Sunday\", \"this weekend\" or an explicit date. Do not use this for questions about a specific team.",
		Args: []ArgSpec{
			{Name: "date_query", Type: ArgString, Description: "The date expression to look up", Required: true},
		},
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			query := args.String("date_query")
			r, err := d.Schedule.ParseQuery(query)
			if err != nil {
				return Result{Display: fmt.Sprintf("I'm sorry, I couldn't understand the date '%s'. Please try again with a clearer date.", query)}, nil
			}

			fixtures := d.Schedule.FixturesOn(r)
			if len(fixtures) == 0 {
				return Result{Display: fmt.Sprintf("No matches found for %s.", query)}, nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Here are the matches for %s:\n", rangeLabel(r))
			for _, f := range fixtures {
				fmt.Fprintf(&b, "- %s: %s (%s)\n", f.Kickoff.Format("15:04 UTC"), f.Label(), f.TournamentName)
			}
			return Result{Display: strings.TrimRight(b.String(), "\n")}, nil
		},
	}
}

func (d Deps) findTeamFixture() *Tool {
	return &Tool{
		Name:        "find_team_fixture",
		Description: "Find upcoming matches for a team. The primary tool for any question about a team's schedule. Optionally filter by a competition name.",
		Args: []ArgSpec{
			{Name: "team_name", Type: ArgString, Description: "The team to look up", Required: true},
			{Name: "competition_name", Type: ArgString, Description: "Optional competition filter"},
		},
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			query := args.String("team_name")
			match, ok := d.Catalog.ResolveTeam(query)
			if !ok {
				if !d.Catalog.Ready() {
					return Result{Display: "Sorry, the team list is currently unavailable. Please try again in a moment."}, nil
				}
				return Result{Display: fmt.Sprintf("I couldn't find a team that closely matches '%s'. Could you try a different name?", query)}, nil
			}

			competition := args.String("competition_name")
			fixtures := d.Schedule.FixturesForTeam(match.Name, competition)
			if len(fixtures) == 0 {
				if competition != "" {
					return Result{Display: fmt.Sprintf("No upcoming fixtures found for %s in %s.", match.Name, competition)}, nil
				}
				return Result{Display: fmt.Sprintf("No upcoming fixtures found for %s.", match.Name)}, nil
			}
			if len(fixtures) > fixtureListLimit {
				fixtures = fixtures[:fixtureListLimit]
			}

			lines := make([]string, len(fixtures))
			for i, f := range fixtures {
				lines[i] = fmt.Sprintf("%s in the %s on %s", f.Label(), f.TournamentName, f.Kickoff.Format("Monday, January 02 at 15:04 UTC"))
			}
			return Result{Display: strings.Join(lines, "\n")}, nil
		},
	}
}

func (d Deps) teamsByTournament() *Tool {
	return &Tool{
		Name:        "get_teams_by_tournament",
		Description: "List the teams participating in a tournament. Understands name variations like \"Champions League\".",
		Args: []ArgSpec{
			{Name: "tournament_name", Type: ArgString, Description: "The tournament to look up", Required: true},
		},
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			query := args.String("tournament_name")
			match, ok := d.Catalog.ResolveTournament(query)
			if !ok {
				if len(d.Catalog.Tournaments()) == 0 {
					return Result{Display: "Sorry, the list of available tournaments is currently empty."}, nil
				}
				return Result{Display: fmt.Sprintf("I couldn't find a tournament that closely matches '%s'.", query)}, nil
			}

			seen := make(map[string]bool)
			var teams []string
			for _, f := range d.Schedule.FixturesInTournament(match.TournamentID) {
				for _, team := range []string{f.HomeTeam, f.AwayTeam} {
					if team != "" && !seen[team] {
						seen[team] = true
						teams = append(teams, team)
					}
				}
			}
			if len(teams) == 0 {
				return Result{Display: fmt.Sprintf("Found the tournament '%s', but it appears to have no teams playing in it at the moment. It might be between seasons.", match.Name)}, nil
			}
			sort.Strings(teams)
			return Result{Display: fmt.Sprintf("The teams in %s are: %s.", match.Name, strings.Join(teams, ", "))}, nil
		},
	}
}

func (d Deps) oddsForMatch() *Tool {
	return &Tool{
		Name:        "get_odds_for_match",
		Description: "Look up all available odds for a specific match between two teams. Always use this when asked for a match's odds. Returns a JSON document with every offered market.",
		Args: []ArgSpec{
			{Name: "team_one", Type: ArgString, Description: "First team", Required: true},
			{Name: "team_two", Type: ArgString, Description: "Second team", Required: true},
		},
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			snap, err := d.Resolver.ForMatch(ctx, args.String("team_one"), args.String("team_two"))
			if err != nil {
				return Result{}, err
			}

			doc, err := json.Marshal(oddsView(snap))
			if err != nil {
				return Result{}, fmt.Errorf("encoding odds: %w", err)
			}
			label := snap.Fixture.Label()
			return Result{
				Display: string(doc),
				Patch: session.ContextPatch{MatchContext: &session.MatchContextPatch{
					Match:        &label,
					FixtureID:    &snap.Fixture.ID,
					TournamentID: &snap.Fixture.TournamentID,
					Odds:         &snap,
				}},
			}, nil
		},
	}
}

func (d Deps) oddsForOutcome() *Tool {
	return &Tool{
		Name:        "get_odds_for_outcome",
		Description: "Look up the odds for one specific outcome of a match, when the user gives no stake amount. The outcome must be one of 'home_win', 'away_win' or 'draw'.",
		Args: []ArgSpec{
			{Name: "team_one", Type: ArgString, Description: "First team", Required: true},
			{Name: "team_two", Type: ArgString, Description: "Second team", Required: true},
			{Name: "outcome", Type: ArgString, Description: "One of home_win, away_win, draw", Required: true},
		},
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			snap, err := d.Resolver.ForMatch(ctx, args.String("team_one"), args.String("team_two"))
			if err != nil {
				return Result{}, err
			}

			outcome := args.String("outcome")
			price, label := resultOdds(snap, outcome)
			if price == nil {
				return Result{Display: fmt.Sprintf("I found the match, but I couldn't find the specific odds for the outcome '%s'.", outcome)}, nil
			}
			return Result{Display: fmt.Sprintf("The odds for %s in the %s match are %s.", label, snap.Fixture.Label(), price)}, nil
		},
	}
}

func (d Deps) dailyOddsAnalysis() *Tool {
	return &Tool{
		Name:        "get_daily_odds_analysis",
		Description: "Broad odds questions for a day or date range: safest bet, riskiest (highest reward) bet and the most competitive match. Understands \"today\", \"tomorrow\", \"this weekend\", \"this month\", \"end of the month\".",
		Args: []ArgSpec{
			{Name: "date_query", Type: ArgString, Description: "The date expression to analyze", Required: true},
		},
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			analysis, err := d.Analyzer.Analyze(ctx, args.String("date_query"))
			if err != nil {
				return Result{}, err
			}
			return Result{Display: renderAnalysis(analysis)}, nil
		},
	}
}

func (d Deps) winningsForMatch() *Tool {
	return &Tool{
		Name:        "calculate_winnings_for_match",
		Description: "Calculate potential winnings for a bet on a specific match. Needs the two teams, the stake amount and the outcome bet on ('home_win', 'away_win' or 'draw').",
		Args: []ArgSpec{
			{Name: "team_one", Type: ArgString, Description: "First team", Required: true},
			{Name: "team_two", Type: ArgString, Description: "Second team", Required: true},
			{Name: "amount", Type: ArgNumber, Description: "The stake amount", Required: true},
			{Name: "bet_on", Type: ArgString, Description: "One of home_win, away_win, draw", Required: true},
		},
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			snap, err := d.Resolver.ForMatch(ctx, args.String("team_one"), args.String("team_two"))
			if err != nil {
				return Result{}, err
			}

			betOn := args.String("bet_on")
			price, label := resultOdds(snap, betOn)
			if price == nil {
				return Result{Display: fmt.Sprintf("I found the match, but I couldn't find the specific odds for '%s'.", betOn)}, nil
			}

			amount := args.Number("amount")
			winnings := bets.Winnings(amount, *price)
			total := winnings.Add(amount)
			lines := []string{
				fmt.Sprintf("The odds for %s in the %s match are **%s**.", label, snap.Fixture.Label(), price),
				fmt.Sprintf("If you bet **$%s** and win, your total winnings would be **$%s**.", amount.StringFixed(2), winnings.StringFixed(2)),
				fmt.Sprintf("Your total return would be **$%s** (your $%s winnings + your $%s stake).", total.StringFixed(2), winnings.StringFixed(2), amount.StringFixed(2)),
			}
			return Result{Display: strings.Join(lines, "\n\n")}, nil
		},
	}
}

func (d Deps) matchRecommendation() *Tool {
	return &Tool{
		Name:        "get_match_recommendation",
		Description: "Recommend a match when the user asks for one without giving a stake amount. Suggests today's safest bet.",
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			analysis, err := d.Analyzer.Analyze(ctx, "today")
			if err != nil {
				return Result{Display: fmt.Sprintf("I can't provide a recommendation right now. Reason: %s", err.Error())}, nil
			}
			safest := analysis.Safest
			return Result{Display: fmt.Sprintf(
				"Based on today's matches, the safest bet appears to be on **%s** to win in the match '%s' with odds of **%s**.",
				safest.Team, safest.Match, safest.Odds)}, nil
		},
	}
}

func (d Deps) bettingRecommendation() *Tool {
	return &Tool{
		Name:        "get_betting_recommendation",
		Description: "Recommend how to split a given stake across today's matches, like \"What should I bet with $100?\". Analyzes today's matches for a 60/40 low-risk/high-risk split. Do not ask the user for a date.",
		Args: []ArgSpec{
			{Name: "amount", Type: ArgNumber, Description: "The total amount to split", Required: true},
		},
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			amount := args.Number("amount")
			if !amount.IsPositive() {
				return Result{Display: "The amount to bet must be positive."}, nil
			}

			analysis, err := d.Analyzer.Analyze(ctx, "today")
			if err != nil {
				return Result{Display: fmt.Sprintf("I can't provide a recommendation right now because I couldn't analyze today's matches. Reason: %s", err.Error())}, nil
			}

			lowStake := amount.Mul(decimal.RequireFromString("0.60"))
			highStake := amount.Sub(lowStake)
			lowWin := bets.Winnings(lowStake, analysis.Safest.Odds)
			highWin := bets.Winnings(highStake, analysis.Riskiest.Odds)
			lines := []string{
				fmt.Sprintf("With $%s, here is a balanced betting strategy for today:", amount.StringFixed(2)),
				fmt.Sprintf("**Low-Risk Bet (60%%):** Bet **$%s** on **%s** to win in the match '%s'.\n  - Odds: **%s**\n  - Potential Winnings: **$%s**",
					lowStake.StringFixed(2), analysis.Safest.Team, analysis.Safest.Match, analysis.Safest.Odds, lowWin.StringFixed(2)),
				fmt.Sprintf("**High-Risk Bet (40%%):** Bet **$%s** on **%s** to win in the match '%s'.\n  - Odds: **%s**\n  - Potential Winnings: **$%s**",
					highStake.StringFixed(2), analysis.Riskiest.Team, analysis.Riskiest.Match, analysis.Riskiest.Odds, highWin.StringFixed(2)),
			}
			return Result{Display: strings.Join(lines, "\n\n")}, nil
		},
	}
}

func (d Deps) userBalance() *Tool {
	return &Tool{
		Name:        "get_user_balance",
		Description: "Return the user's current simulated balance.",
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			return Result{Display: fmt.Sprintf("Your current balance is $%s.", state.SimulatedBalance.StringFixed(2))}, nil
		},
	}
}

func (d Deps) placeBet() *Tool {
	return &Tool{
		Name:        "place_simulated_bet",
		Description: "Place a simulated bet on an outcome of a match. Debits the stake from the simulated balance. The outcome may be 'home', 'away', 'draw' or a team name.",
		Args: []ArgSpec{
			{Name: "team_one", Type: ArgString, Description: "First team", Required: true},
			{Name: "team_two", Type: ArgString, Description: "Second team", Required: true},
			{Name: "outcome", Type: ArgString, Description: "The outcome to bet on", Required: true},
			{Name: "amount", Type: ArgNumber, Description: "The stake amount", Required: true},
		},
		Run: func(ctx context.Context, state *session.State, args Args) (Result, error) {
			placement, err := d.Simulator.PlaceBet(ctx,
				args.String("team_one"), args.String("team_two"), args.String("outcome"),
				args.Number("amount"), state.SimulatedBalance)
			if err != nil {
				return Result{}, err
			}
			delta := placement.BalanceDelta
			entry := placement.Entry
			return Result{
				Display: placement.DisplayText,
				Patch: session.ContextPatch{
					BalanceDelta: &delta,
					NewBet:       &entry,
				},
			}, nil
		},
	}
}

// resultOdds maps a home_win/away_win/draw outcome name onto the
// snapshot's match-result market. The second return is a display label
// naming the winning side.
func resultOdds(snap odds.Snapshot, outcome string) (*decimal.Decimal, string) {
	switch outcome {
	case "home_win":
		return snap.Result.Home, fmt.Sprintf("a %s win", snap.Fixture.HomeTeam)
	case "away_win":
		return snap.Result.Away, fmt.Sprintf("a %s win", snap.Fixture.AwayTeam)
	case "draw":
		return snap.Result.Draw, "a draw"
	}
	return nil, ""
}

// rangeLabel renders a date range for display, collapsing single-day
// ranges to the day itself.
func rangeLabel(r schedule.DateRange) string {
	last := r.To.AddDate(0, 0, -1)
	if r.From.Equal(last) {
		return r.From.Format("Monday, January 02")
	}
	return fmt.Sprintf("the period from %s to %s", r.From.Format("January 02"), last.Format("January 02"))
}

func renderAnalysis(a odds.Analysis) string {
	lines := []string{
		fmt.Sprintf("Here is the betting analysis for %s:", rangeLabel(a.Range)),
		fmt.Sprintf("- Safest Bet: %s to win in '%s' with odds of %s.", a.Safest.Team, a.Safest.Match, a.Safest.Odds),
		fmt.Sprintf("- Highest Reward Bet: %s to win in '%s' with odds of %s.", a.Riskiest.Team, a.Riskiest.Match, a.Riskiest.Odds),
		fmt.Sprintf("- Most Competitive Match: '%s'. This is the most competitive match because the odds are very close, with a difference of only %s.",
			a.MostCompetitive.Match, a.MostCompetitive.Gap.StringFixed(2)),
	}
	return strings.Join(lines, "\n")
}

// oddsView mirrors the wire shape stored into the match context: every
// market with nulls for outcomes the upstream does not offer.
func oddsView(snap odds.Snapshot) map[string]any {
	lineView := func(line string, price *decimal.Decimal) any {
		if price == nil {
			return nil
		}
		return map[string]any{"line": line, "odds": price}
	}
	return map[string]any{
		"match": snap.Fixture.Label(),
		"match_result": map[string]any{
			"home_win": snap.Result.Home,
			"away_win": snap.Result.Away,
			"draw":     snap.Result.Draw,
		},
		"both_teams_to_score": map[string]any{
			"yes": snap.BothTeamsScore.Yes,
			"no":  snap.BothTeamsScore.No,
		},
		"double_chance": map[string]any{
			"home_or_draw": snap.DoubleChance.HomeOrDraw,
			"away_or_draw": snap.DoubleChance.AwayOrDraw,
			"home_or_away": snap.DoubleChance.HomeOrAway,
		},
		"over_under": map[string]any{
			"over":  lineView(snap.OverUnder.Line, snap.OverUnder.Over),
			"under": lineView(snap.OverUnder.Line, snap.OverUnder.Under),
		},
		"handicap": map[string]any{
			"home": lineView(snap.Handicap.Line, snap.Handicap.Home),
			"away": lineView(snap.Handicap.Line, snap.Handicap.Away),
		},
		"half_time_result": map[string]any{
			"home_win": snap.HalfTimeResult.Home,
			"away_win": snap.HalfTimeResult.Away,
			"draw":     snap.HalfTimeResult.Draw,
		},
	}
}
