package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/Cardboom/cardboomtest-sub005/internal/notification"
)

const archiveTTL = 90 * 24 * time.Hour

var (
	dynamoClient *dynamodb.Client
	tableName    string
)

func init() {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		panic(fmt.Sprintf("failed to load AWS config: %v", err))
	}
	dynamoClient = dynamodb.NewFromConfig(cfg)

	tableName = os.Getenv("ARCHIVE_TABLE")
	if tableName == "" {
		tableName = "price-update-archive"
	}

	fmt.Printf("[INIT] Archiver Lambda initialized - Table: %s\n", tableName)
}

// ArchiveRecord is a price update snapshot persisted with a TTL so the
// archive table self-prunes.
type ArchiveRecord struct {
	notification.PriceUpdate
	ArchivedAt string `dynamodbav:"archived_at" json:"archived_at"`
	TTL        int64  `dynamodbav:"ttl" json:"ttl"`
}

// Handler consumes SNS-over-SQS price update events and archives them to
// DynamoDB, reporting per-message failures so SQS retries only those.
func Handler(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	fmt.Printf("[HANDLER] Processing %d SQS records\n", len(sqsEvent.Records))

	var batchItemFailures []events.SQSBatchItemFailure
	successCount := 0

	for _, record := range sqsEvent.Records {
		var snsMessage struct {
			Message string `json:"Message"`
		}
		if err := json.Unmarshal([]byte(record.Body), &snsMessage); err != nil {
			fmt.Printf("[ERROR] Failed to parse SQS body: %v\n", err)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		var update notification.PriceUpdate
		if err := json.Unmarshal([]byte(snsMessage.Message), &update); err != nil {
			fmt.Printf("[ERROR] Failed to parse price update: %v\n", err)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		now := time.Now()
		archive := ArchiveRecord{
			PriceUpdate: update,
			ArchivedAt:  now.UTC().Format(time.RFC3339),
			TTL:         now.Add(archiveTTL).Unix(),
		}

		if err := writeToDynamoDB(ctx, archive); err != nil {
			fmt.Printf("[ERROR] Failed to write to DynamoDB: %v - ItemID: %s\n", err, update.ItemID)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		successCount++
	}

	fmt.Printf("[SUMMARY] Processed %d records - Success: %d, Failed: %d\n",
		len(sqsEvent.Records), successCount, len(batchItemFailures))

	return events.SQSEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

func writeToDynamoDB(ctx context.Context, record ArchiveRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

func main() {
	lambda.Start(Handler)
}
