package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"discord-modbot/handlers/punish"
	"discord-modbot/model"
	"discord-modbot/utils"

	"github.com/bwmarrin/discordgo"
)

// auditLogDelay gives Discord time to write the audit log entry of a ban.
const auditLogDelay = time.Second

// selfActionWindow is how long an action performed by the bot is remembered,
// so the gateway event it triggers is not mistaken for a manual reversal.
const selfActionWindow = time.Minute

// GuildActions applies and reverts punishments through the Discord REST API.
type GuildActions struct {
	session *discordgo.Session
	self    *utils.ExpiringSet
}

// NewGuildActions creates the Discord action surface.
func NewGuildActions(s *discordgo.Session) *GuildActions {
	return &GuildActions{
		session: s,
		self:    utils.NewExpiringSet(selfActionWindow),
	}
}

func selfKey(op, guildID, userID string) string {
	return op + ":" + guildID + ":" + userID
}

// ConsumeSelfBan reports whether the bot itself just banned the member.
func (g *GuildActions) ConsumeSelfBan(guildID, userID string) bool {
	return g.self.Consume(selfKey("ban", guildID, userID))
}

// ConsumeSelfUnban reports whether the bot itself just unbanned the member.
func (g *GuildActions) ConsumeSelfUnban(guildID, userID string) bool {
	return g.self.Consume(selfKey("unban", guildID, userID))
}

// ConsumeSelfTimeoutClear reports whether the bot itself just cleared the member's timeout.
func (g *GuildActions) ConsumeSelfTimeoutClear(guildID, userID string) bool {
	return g.self.Consume(selfKey("untimeout", guildID, userID))
}

// RemoveBan lifts a ban. A ban that no longer exists counts as lifted.
func (g *GuildActions) RemoveBan(ctx context.Context, guildID, userID, reason string) error {
	g.self.Add(selfKey("unban", guildID, userID))
	err := g.session.GuildBanDelete(guildID, userID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to remove ban of %s in guild %s: %w", userID, guildID, err)
	}
	return nil
}

// ClearTimeout ends a member's timeout. A member who left, or whose
// timeout already ran out, counts as cleared.
func (g *GuildActions) ClearTimeout(ctx context.Context, guildID, userID, reason string) error {
	member, err := g.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to fetch member %s in guild %s: %w", userID, guildID, err)
	}
	if member.CommunicationDisabledUntil == nil || !member.CommunicationDisabledUntil.After(time.Now()) {
		return nil
	}

	g.self.Add(selfKey("untimeout", guildID, userID))
	err = g.session.GuildMemberTimeout(guildID, userID, nil, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to clear timeout of %s in guild %s: %w", userID, guildID, err)
	}
	return nil
}

// Ban bans a member. Reasons are tagged so manual-ban detection can tell them apart.
func (g *GuildActions) Ban(ctx context.Context, guildID, userID, reason string) error {
	key := selfKey("ban", guildID, userID)
	g.self.Add(key)
	if err := g.session.GuildBanCreateWithReason(guildID, userID, tagged(reason), 0, discordgo.WithContext(ctx)); err != nil {
		g.self.Consume(key)
		return fmt.Errorf("failed to ban %s in guild %s: %w", userID, guildID, err)
	}
	return nil
}

func tagged(reason string) string {
	return punish.CommandTag + " " + reason
}

// BanAuditEntry finds who banned the member and why. It returns nil when the
// latest ban entry of the guild is not about this member.
func (g *GuildActions) BanAuditEntry(ctx context.Context, guildID, userID string) (*punish.BanEntry, error) {
	select {
	case <-time.After(auditLogDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	auditLog, err := g.session.GuildAuditLog(guildID, "", "", int(discordgo.AuditLogActionMemberBanAdd), 1, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to read ban audit log of guild %s: %w", guildID, err)
	}
	return banEntry(auditLog, userID), nil
}

func banEntry(auditLog *discordgo.GuildAuditLog, userID string) *punish.BanEntry {
	if auditLog == nil || len(auditLog.AuditLogEntries) == 0 || auditLog.AuditLogEntries[0].TargetID != userID {
		return nil
	}
	entry := auditLog.AuditLogEntries[0]
	out := &punish.BanEntry{ModeratorID: entry.UserID, ModeratorTag: entry.UserID, Reason: entry.Reason}
	for _, u := range auditLog.Users {
		if u != nil && u.ID == entry.UserID {
			out.ModeratorTag = u.String()
			break
		}
	}
	return out
}

// Timeout disables a member's communication until the given time.
func (g *GuildActions) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	err := g.session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(tagged(reason)))
	if err != nil {
		return fmt.Errorf("failed to time out %s in guild %s: %w", userID, guildID, err)
	}
	return nil
}

// Kick removes a member from the guild.
func (g *GuildActions) Kick(ctx context.Context, guildID, userID, reason string) error {
	if err := g.session.GuildMemberDeleteWithReason(guildID, userID, tagged(reason), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to kick %s from guild %s: %w", userID, guildID, err)
	}
	return nil
}

// NotifyMember DMs the member about a punishment before it is applied.
func (g *GuildActions) NotifyMember(ctx context.Context, rec model.PunishmentRecord) error {
	guildName := "the server"
	if guild, err := g.session.State.Guild(rec.GuildID); err == nil {
		guildName = guild.Name
	}
	return utils.SendPrivateEmbedMessage(ctx, g.session, rec.UserID, punish.MemberNoticeEmbed(&rec, guildName))
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}
