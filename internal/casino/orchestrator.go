package casino

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wfunc/casino-bot/internal/config"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/game"
	"github.com/wfunc/casino-bot/internal/logger"
	"github.com/wfunc/casino-bot/internal/models"
	"github.com/wfunc/casino-bot/internal/ratelimit"
	"github.com/wfunc/casino-bot/internal/service"
	"github.com/wfunc/casino-bot/internal/session"
)

// Orchestrator 把聊天动作翻译成会话状态转换和账本操作
// 同一玩家的动作由会话管理器串行化，不同玩家互不阻塞
type Orchestrator struct {
	ledger   service.LedgerService
	promos   service.PromoService
	sessions *session.Manager
	engine   *game.Engine
	limiter  ratelimit.Limiter
	cfg      config.CasinoConfig
	log      *zap.Logger
}

// New 创建编排器
func New(
	ledger service.LedgerService,
	promos service.PromoService,
	sessions *session.Manager,
	engine *game.Engine,
	limiter ratelimit.Limiter,
	cfg config.CasinoConfig,
	log *zap.Logger,
) *Orchestrator {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		ledger:   ledger,
		promos:   promos,
		sessions: sessions,
		engine:   engine,
		limiter:  limiter,
		cfg:      cfg,
		log:      log,
	}
}

// Handle 处理一个入站动作
// 面向玩家的错误放在 Reply.Err 中，只有存储等内部故障才作为 error 返回
func (o *Orchestrator) Handle(ctx context.Context, a Action) (*Reply, error) {
	if a.UserID <= 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "缺少玩家ID")
	}

	sm, release := o.sessions.Acquire(a.UserID)
	defer release()

	if _, err := o.ledger.GetOrCreateAccount(ctx, a.UserID, a.DisplayName); err != nil {
		return nil, err
	}

	var (
		reply *Reply
		err   error
	)
	switch a.Kind {
	case ActionCallback:
		reply, err = o.handleCallback(ctx, sm, strings.TrimSpace(a.Content))
	case ActionText:
		reply, err = o.handleText(ctx, sm, strings.TrimSpace(a.Content))
	default:
		err = apperrors.Newf(apperrors.ErrInvalidParam, "未知的动作类型: %q", a.Kind)
	}

	if err != nil {
		if !apperrors.IsUserFacing(err) {
			o.log.Error("处理动作失败",
				zap.Int64("user_id", a.UserID),
				zap.String("kind", string(a.Kind)),
				zap.String("state", string(sm.State().Kind)),
				zap.Error(err))
			return nil, err
		}
		appErr, _ := apperrors.As(err)
		reply = o.errorReply(sm, appErr)
	}

	balance, err := o.ledger.GetBalance(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	reply.State = sm.State().Kind
	reply.Balance = balance
	if reply.Err != nil {
		reply.Code = reply.Err.Code
	}
	return reply, nil
}

// errorReply 错误提示，菜单跟随当前状态
func (o *Orchestrator) errorReply(sm *session.StateMachine, appErr *apperrors.AppError) *Reply {
	state := sm.State()
	menu := mainMenu()
	switch state.Kind {
	case session.StateAwaitingBet, session.StateAwaitingPromoCode:
		menu = backMenu()
	case session.StateAwaitingChoice:
		menu = choiceMenu(state.Game)
	}
	return &Reply{Text: "❌ " + appErr.Message, Menu: menu, Err: appErr}
}

func (o *Orchestrator) handleCallback(ctx context.Context, sm *session.StateMachine, tag string) (*Reply, error) {
	switch tag {
	case TagMain:
		return o.showMain(ctx, sm, false)
	case TagGames:
		return &Reply{Text: renderGames(o.engine.Payouts()), Menu: gamesMenu()}, nil
	case TagProfile:
		account, err := o.ledger.GetAccount(ctx, sm.UserID())
		if err != nil {
			return nil, err
		}
		return &Reply{Text: renderProfile(account), Menu: backMenu()}, nil
	case TagBonus:
		return o.claimBonus(ctx, sm)
	case TagRating:
		accounts, err := o.ledger.TopAccounts(ctx, o.cfg.LeaderboardSize)
		if err != nil {
			return nil, err
		}
		return &Reply{Text: renderLeaderboard(accounts), Menu: backMenu()}, nil
	case TagHistory:
		records, err := o.ledger.History(ctx, sm.UserID(), o.cfg.HistorySize)
		if err != nil {
			return nil, err
		}
		return &Reply{Text: renderHistory(records), Menu: backMenu()}, nil
	case TagHelp:
		return &Reply{Text: renderHelp(o.cfg, o.engine.Payouts()), Menu: backMenu()}, nil
	case TagPromo:
		return o.selectPromo(ctx, sm)
	case TagCancel:
		return o.cancel(ctx, sm)
	}

	if value, ok := parseTag(tag, tagGamePrefix); ok {
		kind, err := game.ParseKind(value)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrUnknownGame, value)
		}
		return o.selectGame(ctx, sm, kind)
	}
	if value, ok := parseTag(tag, tagChoicePrefix); ok {
		side, err := game.ParseSide(value)
		if err != nil {
			return nil, o.choiceError(sm, err)
		}
		return o.resolveChoice(ctx, sm, game.KindCoinFlip, game.Choice{Side: side})
	}
	if value, ok := parseTag(tag, tagRoulettePrefix); ok {
		bet, err := game.ParseRouletteBet(value)
		if err != nil {
			return nil, o.choiceError(sm, err)
		}
		return o.resolveChoice(ctx, sm, game.KindRoulette, game.Choice{Roulette: bet})
	}

	return nil, apperrors.Newf(apperrors.ErrInvalidParam, "未知的按钮: %q", tag)
}

// choiceError 选择无法解析：不在等待选择时按状态错误处理
func (o *Orchestrator) choiceError(sm *session.StateMachine, err error) error {
	if sm.State().Kind != session.StateAwaitingChoice {
		return apperrors.Newf(apperrors.ErrInvalidStateTransition, "状态=%s, 事件=%s", sm.State().Kind, session.EventResolve)
	}
	return apperrors.Wrap(err, apperrors.ErrInvalidChoice)
}

func (o *Orchestrator) handleText(ctx context.Context, sm *session.StateMachine, text string) (*Reply, error) {
	switch strings.ToLower(text) {
	case "/start":
		return o.showMain(ctx, sm, true)
	case "/help":
		return &Reply{Text: renderHelp(o.cfg, o.engine.Payouts()), Menu: backMenu()}, nil
	case "/cancel":
		return o.cancel(ctx, sm)
	}

	state := sm.State()
	switch state.Kind {
	case session.StateAwaitingBet:
		return o.placeBet(ctx, sm, text)
	case session.StateAwaitingChoice:
		if state.Game == game.KindRoulette {
			n, err := strconv.Atoi(text)
			if err != nil {
				return nil, apperrors.New(apperrors.ErrInvalidChoice, "请输入 0-36 的数字或点击按钮")
			}
			bet, err := game.NumberBet(n)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrInvalidChoice)
			}
			return o.resolveChoice(ctx, sm, game.KindRoulette, game.Choice{Roulette: bet})
		}
		return nil, apperrors.New(apperrors.ErrInvalidChoice, "请点击按钮选择")
	case session.StateAwaitingPromoCode:
		return o.submitPromo(ctx, sm, text)
	}

	balance, err := o.ledger.GetBalance(ctx, sm.UserID())
	if err != nil {
		return nil, err
	}
	return &Reply{Text: "🤔 请使用下方菜单\n\n" + renderMainMenu(balance), Menu: mainMenu()}, nil
}

// abandonPending 丢弃未完成的两步游戏
// 默认注金不退，开启 refund_on_cancel 时写一条退款流水
func (o *Orchestrator) abandonPending(ctx context.Context, sm *session.StateMachine) (string, error) {
	state := sm.State()
	if state.Kind != session.StateAwaitingChoice || state.Bet <= 0 {
		return "", nil
	}

	if !o.cfg.RefundOnCancel {
		o.log.Info("放弃未完成的对局",
			logger.RoundFields(sm.UserID(), state.RoundID, state.Game.String(), state.Bet, 0)...)
		return fmt.Sprintf("⚠️ 已放弃上一局，注金 %d 不退还", state.Bet), nil
	}

	if _, err := o.ledger.AdjustBalance(ctx, sm.UserID(), state.Bet, models.EntryRefund, state.RoundID); err != nil {
		return "", err
	}
	o.log.Info("退还未完成对局的注金",
		logger.RoundFields(sm.UserID(), state.RoundID, state.Game.String(), state.Bet, state.Bet)...)
	return fmt.Sprintf("↩️ 已退还注金 %d", state.Bet), nil
}

func withNote(note, text string) string {
	if note == "" {
		return text
	}
	return note + "\n\n" + text
}

func (o *Orchestrator) showMain(ctx context.Context, sm *session.StateMachine, welcome bool) (*Reply, error) {
	note, err := o.abandonPending(ctx, sm)
	if err != nil {
		return nil, err
	}
	if err := sm.Trigger(ctx, session.EventCancel, session.Payload{}); err != nil {
		return nil, err
	}

	balance, err := o.ledger.GetBalance(ctx, sm.UserID())
	if err != nil {
		return nil, err
	}
	text := renderMainMenu(balance)
	if welcome {
		text = renderWelcome(balance)
	}
	return &Reply{Text: withNote(note, text), Menu: mainMenu()}, nil
}

func (o *Orchestrator) cancel(ctx context.Context, sm *session.StateMachine) (*Reply, error) {
	pending := sm.State().Pending()
	note, err := o.abandonPending(ctx, sm)
	if err != nil {
		return nil, err
	}
	if err := sm.Trigger(ctx, session.EventCancel, session.Payload{}); err != nil {
		return nil, err
	}

	text := "✖️ 已取消"
	if !pending {
		text = "没有需要取消的操作"
	}
	return &Reply{Text: withNote(note, text), Menu: mainMenu()}, nil
}

func (o *Orchestrator) claimBonus(ctx context.Context, sm *session.StateMachine) (*Reply, error) {
	result, err := o.ledger.ClaimDailyBonus(ctx, sm.UserID())
	if err != nil {
		return nil, err
	}
	reply := &Reply{Text: renderBonus(result.Claimed, result.Amount, result.Balance), Menu: backMenu()}
	if !result.Claimed {
		reply.Err = apperrors.New(apperrors.ErrBonusAlreadyClaimed, result.Date)
	}
	return reply, nil
}

func (o *Orchestrator) selectGame(ctx context.Context, sm *session.StateMachine, kind game.Kind) (*Reply, error) {
	note, err := o.abandonPending(ctx, sm)
	if err != nil {
		return nil, err
	}
	if err := sm.Trigger(ctx, session.EventSelectGame, session.Payload{Game: kind}); err != nil {
		return nil, err
	}

	balance, err := o.ledger.GetBalance(ctx, sm.UserID())
	if err != nil {
		return nil, err
	}
	return &Reply{Text: withNote(note, renderBetPrompt(kind, o.cfg, balance)), Menu: backMenu()}, nil
}

func (o *Orchestrator) selectPromo(ctx context.Context, sm *session.StateMachine) (*Reply, error) {
	note, err := o.abandonPending(ctx, sm)
	if err != nil {
		return nil, err
	}
	if err := sm.Trigger(ctx, session.EventSelectPromo, session.Payload{}); err != nil {
		return nil, err
	}
	return &Reply{Text: withNote(note, "🏷 请输入促销码:"), Menu: backMenu()}, nil
}

// parseBet 校验下注金额，失败时状态不变
func (o *Orchestrator) parseBet(ctx context.Context, userID int64, text string) (int64, error) {
	bet, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, apperrors.Newf(apperrors.ErrInvalidBet, "请输入 %d - %d 之间的整数", o.cfg.MinBet, o.cfg.MaxBet)
	}
	if bet < o.cfg.MinBet || bet > o.cfg.MaxBet {
		return 0, apperrors.Newf(apperrors.ErrInvalidBet, "下注范围 %d - %d", o.cfg.MinBet, o.cfg.MaxBet)
	}

	balance, err := o.ledger.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	if bet > balance {
		return 0, apperrors.Newf(apperrors.ErrInsufficientFunds, "余额 %d", balance)
	}
	return bet, nil
}

// allowRound 限流；限流器故障时放行
func (o *Orchestrator) allowRound(ctx context.Context, userID int64) error {
	ok, err := o.limiter.Allow(ctx, userID, ratelimit.ActionRound)
	if err != nil {
		o.log.Warn("限流器不可用，放行", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	if !ok {
		return apperrors.Newf(apperrors.ErrRateLimitExceeded, "每分钟最多 %d 局", o.cfg.MaxGamesPerMinute)
	}
	return nil
}

func (o *Orchestrator) placeBet(ctx context.Context, sm *session.StateMachine, text string) (*Reply, error) {
	userID := sm.UserID()
	kind := sm.State().Game

	bet, err := o.parseBet(ctx, userID, text)
	if err != nil {
		return nil, err
	}
	if err := o.allowRound(ctx, userID); err != nil {
		return nil, err
	}

	roundID := uuid.NewString()
	if kind.NeedsChoice() {
		if !sm.CanTrigger(session.EventStakeBet) {
			return nil, apperrors.Newf(apperrors.ErrInvalidStateTransition, "状态=%s, 事件=%s", sm.State().Kind, session.EventStakeBet)
		}
		if _, err := o.ledger.PlaceStake(ctx, userID, roundID, kind, bet); err != nil {
			return nil, err
		}
		if err := sm.Trigger(ctx, session.EventStakeBet, session.Payload{Bet: bet, RoundID: roundID}); err != nil {
			return nil, err
		}
		return &Reply{Text: renderChoicePrompt(kind, bet), Menu: choiceMenu(kind)}, nil
	}

	outcome, err := o.engine.Play(kind, game.Choice{})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknownGame)
	}
	result, err := o.record(ctx, o.ledger.PlayRound, userID, roundID, kind, bet, outcome)
	if err != nil {
		return nil, err
	}
	if err := sm.Trigger(ctx, session.EventResolve, session.Payload{}); err != nil {
		return nil, err
	}
	return o.roundReply(ctx, userID, result)
}

func (o *Orchestrator) resolveChoice(ctx context.Context, sm *session.StateMachine, kind game.Kind, choice game.Choice) (*Reply, error) {
	state := sm.State()
	if state.Kind != session.StateAwaitingChoice {
		return nil, apperrors.Newf(apperrors.ErrInvalidStateTransition, "状态=%s, 事件=%s", state.Kind, session.EventResolve)
	}
	if state.Game != kind {
		return nil, apperrors.Newf(apperrors.ErrInvalidChoice, "当前游戏是 %s", state.Game.Title())
	}

	outcome, err := o.engine.Play(kind, choice)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInvalidChoice)
	}
	result, err := o.record(ctx, o.ledger.SettleRound, sm.UserID(), state.RoundID, kind, state.Bet, outcome)
	if err != nil {
		return nil, err
	}
	if err := sm.Trigger(ctx, session.EventResolve, session.Payload{}); err != nil {
		return nil, err
	}
	return o.roundReply(ctx, sm.UserID(), result)
}

type settleFunc func(ctx context.Context, s *service.Settlement) (*models.GameRecord, error)

// record 按赔率计算派彩并写账
func (o *Orchestrator) record(ctx context.Context, settle settleFunc, userID int64, roundID string, kind game.Kind, bet int64, outcome game.Outcome) (*RoundResult, error) {
	payout := game.Payout(bet, outcome.Multiplier)
	rec, err := settle(ctx, &service.Settlement{
		RoundID:    roundID,
		UserID:     userID,
		Kind:       kind,
		Bet:        bet,
		Payout:     payout,
		Multiplier: outcome.Multiplier,
		Outcome:    outcome.Description,
	})
	if err != nil {
		return nil, err
	}
	return &RoundResult{
		RoundID:     rec.RoundID,
		Game:        kind,
		Bet:         rec.Bet,
		Won:         rec.Won(),
		Payout:      rec.Payout,
		Multiplier:  rec.Multiplier,
		Description: outcome.Description,
	}, nil
}

func (o *Orchestrator) roundReply(ctx context.Context, userID int64, r *RoundResult) (*Reply, error) {
	balance, err := o.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: renderRound(r, balance), Menu: mainMenu(), Round: r}, nil
}

func (o *Orchestrator) submitPromo(ctx context.Context, sm *session.StateMachine, text string) (*Reply, error) {
	result, err := o.promos.Redeem(ctx, sm.UserID(), text)
	switch {
	case err == nil:
	case apperrors.Is(err, apperrors.ErrPromoInvalid):
		// 格式错误可以重新输入
		return nil, err
	case apperrors.IsUserFacing(err):
		if terr := sm.Trigger(ctx, session.EventSubmitCode, session.Payload{}); terr != nil {
			return nil, terr
		}
		return nil, err
	default:
		return nil, err
	}

	if err := sm.Trigger(ctx, session.EventSubmitCode, session.Payload{}); err != nil {
		return nil, err
	}
	return &Reply{
		Text: fmt.Sprintf("✅ 促销码 %s 兑换成功！\n💰 +%d 积分\n余额: %d", result.Code, result.Reward, result.Balance),
		Menu: mainMenu(),
	}, nil
}
