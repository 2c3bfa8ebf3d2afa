package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/tokenbank/internal/logging"
	"github.com/dmitrijs2005/tokenbank/internal/server/config"
	"github.com/dmitrijs2005/tokenbank/internal/server/models"
	"github.com/google/uuid"
)

const statementURLValidity = 15 * time.Minute

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// HistoryReader is the part of LedgerService a statement is built from.
type HistoryReader interface {
	GetBalance(ctx context.Context, email string) (int64, error)
	History(ctx context.Context, email string, limit int) ([]models.Transaction, error)
}

// StatementLine is one transaction in an exported statement.
type StatementLine struct {
	ID           string    `json:"id"`
	Amount       int64     `json:"amount"`
	Description  string    `json:"description"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// Statement is the JSON document written to object storage.
type Statement struct {
	Email        string          `json:"email"`
	GeneratedAt  time.Time       `json:"generated_at"`
	Balance      int64           `json:"balance"`
	Transactions []StatementLine `json:"transactions"`
}

// StatementExport locates an uploaded statement.
type StatementExport struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

// StatementService exports account history to S3-compatible storage.
type StatementService struct {
	ledger HistoryReader
	config *config.Config
	logger logging.Logger
	now    func() time.Time
}

func NewStatementService(ledger HistoryReader, cfg *config.Config, logger logging.Logger) *StatementService {
	return &StatementService{
		ledger: ledger,
		config: cfg,
		logger: logger.With("module", "statement"),
		now:    time.Now,
	}
}

// StatementKey returns a fresh object key under statements/<yyyy>/<mm>/<dd>/.
func StatementKey(d time.Time) string {
	return fmt.Sprintf("statements/%04d/%02d/%02d/%v.json", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *StatementService) getClients(ctx context.Context) (*s3.Client, *s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, newS3PresignClient(client), nil
}

// Export snapshots the balance and full history of email, uploads it as
// JSON and returns a presigned GET URL valid for 15 minutes.
func (s *StatementService) Export(ctx context.Context, email string) (*StatementExport, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.GetBalance(ctx, email)
	if err != nil {
		return nil, err
	}
	history, err := s.ledger.History(ctx, email, 0)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc := Statement{
		Email:        email,
		GeneratedAt:  now,
		Balance:      balance,
		Transactions: make([]StatementLine, 0, len(history)),
	}
	for _, t := range history {
		doc.Transactions = append(doc.Transactions, StatementLine{
			ID:           t.ID,
			Amount:       t.Amount,
			Description:  t.Description,
			BalanceAfter: t.BalanceAfter,
			CreatedAt:    t.CreatedAt,
		})
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	client, presignClient, err := s.getClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("error configuring object storage: %w", err)
	}

	bucket := s.config.S3Bucket
	key := StatementKey(now)

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return nil, fmt.Errorf("error uploading statement: %w", err)
	}

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(statementURLValidity))
	if err != nil {
		return nil, fmt.Errorf("error presigning statement: %w", err)
	}

	s.logger.Info(ctx, "statement exported", "key", key, "transactions", len(doc.Transactions))
	return &StatementExport{Key: key, URL: req.URL, ExpiresAt: now.Add(statementURLValidity)}, nil
}
