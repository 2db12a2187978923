// Package email は参加登録の確認メールなどを送信するメーラーを提供する
package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-registration/internal/config"
	"github.com/sanosuguru/go-event-registration/internal/pkg/logger"
)

// プロバイダー名。メトリクスのラベルにも使う
const (
	ProviderNoop = "noop"
	ProviderSES  = "ses"
)

// Message は送信するメール
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer はメール送信のインターフェース
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Provider() string
}

// NewMailer は設定に応じたメーラーを作成する
func NewMailer(cfg *config.MailConfig) Mailer {
	switch cfg.Provider {
	case ProviderSES:
		awsCfg := aws.Config{Region: cfg.AWSRegion}
		if cfg.AWSAccessKeyID != "" {
			awsCfg.Credentials = aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
			)
		}
		return NewSESMailer(ses.NewFromConfig(awsCfg), cfg.FromAddress, cfg.FromName)
	default:
		return NoopMailer{}
	}
}

// SESClient は SES クライアントのうち使用する操作
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer は Amazon SES でメールを送信する
type SESMailer struct {
	client      SESClient
	fromAddress string
	fromName    string
}

// NewSESMailer は SESMailer を作成する
func NewSESMailer(client SESClient, fromAddress, fromName string) *SESMailer {
	return &SESMailer{client: client, fromAddress: fromAddress, fromName: fromName}
}

// Provider はプロバイダー名を返す
func (m *SESMailer) Provider() string { return ProviderSES }

// Send はメールを送信する
func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	source := m.fromAddress
	if m.fromName != "" {
		source = fmt.Sprintf("%s <%s>", m.fromName, m.fromAddress)
	}
	input := &ses.SendEmailInput{
		Source:      aws.String(source),
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: utf8Content(msg.Subject),
			Body:    &types.Body{},
		},
	}
	if msg.HTML != "" {
		input.Message.Body.Html = utf8Content(msg.HTML)
	}
	if msg.Text != "" {
		input.Message.Body.Text = utf8Content(msg.Text)
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("SESでのメール送信に失敗しました: %w", err)
	}
	logger.Debug("メールを送信しました", zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

func utf8Content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

// NoopMailer は送信せずにログだけ出力する
type NoopMailer struct{}

// Provider はプロバイダー名を返す
func (NoopMailer) Provider() string { return ProviderNoop }

// Send はログを出力する
func (NoopMailer) Send(ctx context.Context, msg Message) error {
	logger.Debug("メール送信をスキップしました（noop）", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
