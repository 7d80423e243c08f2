package handlers

import (
	"context"
	"fmt"
	"runtime"
	"time"
	"unicode/utf8"

	"discord-modbot/bot"
	"discord-modbot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// maxSummaryLen keeps the timer list inside Discord's embed description limit.
const maxSummaryLen = 3900

func SystemInfoHandler(s *discordgo.Session, i *discordgo.InteractionCreate, b *bot.Bot) {
	cpuCount, _ := cpu.Counts(true)
	cpuPercent, _ := cpu.Percent(0, false)
	vm, _ := mem.VirtualMemory()
	hostInfo, _ := host.Info()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	summary, err := b.Expiry.Summary(ctx, i.GuildID)
	if err != nil {
		b.Logger().Error("failed to build expiry summary", zap.Error(err))
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Go", Value: runtime.Version(), Inline: true},
		{Name: "Goroutines", Value: fmt.Sprintf("%d", runtime.NumGoroutine()), Inline: true},
		{Name: "WebSocket latency", Value: s.HeartbeatLatency().String(), Inline: true},
		{Name: "Armed timers", Value: fmt.Sprintf("%d", b.Expiry.ScheduledCount()), Inline: true},
		{Name: "Pending punishments", Value: fmt.Sprintf("%d", len(summary.Entries)), Inline: true},
	}
	if hostInfo != nil {
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "OS", Value: fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion), Inline: true},
			&discordgo.MessageEmbedField{Name: "Host uptime", Value: utils.FormatRemaining(time.Duration(hostInfo.Uptime) * time.Second), Inline: true},
		)
	}
	if len(cpuPercent) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "CPU", Value: fmt.Sprintf("%.1f%% of %d cores", cpuPercent[0], cpuCount), Inline: true,
		})
	}
	if vm != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Memory", Value: fmt.Sprintf("%.1f%% (%d MB / %d MB)", vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024), Inline: true,
		})
	}

	desc := truncate(summary.String(), maxSummaryLen)

	embed := &discordgo.MessageEmbed{
		Title:       "System status",
		Color:       0x5865F2,
		Description: "```\n" + desc + "\n```",
		Fields:      fields,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if err := utils.SendEmbedResponse(s, i, embed, true); err != nil {
		b.Logger().Warn("error sending status", zap.Error(err))
	}
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n..."
}
