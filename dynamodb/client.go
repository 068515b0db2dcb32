package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jharbyjoel/appointment-app/appointment"
)

const (
	// DefaultDateIndexName is the default name of the Global Secondary Index
	// used to query appointments by day. Partition key: tenantDateKey, sort
	// key: SK, projection: ALL.
	DefaultDateIndexName = "DateIndex"

	// PartitionKey is the DynamoDB partition key attribute name.
	PartitionKey = "PK"

	// SortKey is the DynamoDB sort key attribute name. It is also the sort key
	// of the date index.
	SortKey = "SK"

	// TenantDateKeyAttr is the attribute name holding the date index
	// partition key.
	TenantDateKeyAttr = "tenantDateKey"

	// StatusAttr is the attribute name of the appointment status. "status" is
	// a DynamoDB reserved word and must be aliased in expressions.
	StatusAttr = "status"

	// LocationAttr is the attribute name of the appointment location. Also a
	// reserved word.
	LocationAttr = "location"

	endTimeAttr = "endTime"
	notesAttr   = "notes"

	// maxBackoff is the maximum backoff duration for retry loops.
	maxBackoff = 2 * time.Second
)

// item is the stored shape of an appointment.
type item struct {
	PK              string `dynamodbav:"PK"`
	SK              string `dynamodbav:"SK"`
	TenantDateKey   string `dynamodbav:"tenantDateKey,omitempty"`
	TenantID        string `dynamodbav:"tenantId,omitempty"`
	CustomerEmail   string `dynamodbav:"customerEmail,omitempty"`
	CustomerName    string `dynamodbav:"customerName,omitempty"`
	Phone           string `dynamodbav:"phone,omitempty"`
	StartTime       string `dynamodbav:"startTime,omitempty"`
	EndTime         string `dynamodbav:"endTime,omitempty"`
	AppointmentDate string `dynamodbav:"appointmentDate,omitempty"`
	Status          string `dynamodbav:"status,omitempty"`
	Notes           string `dynamodbav:"notes,omitempty"`
	Location        string `dynamodbav:"location,omitempty"`
}

func (i *item) appointment() appointment.Appointment {
	return appointment.Appointment{
		TenantID:        i.TenantID,
		CustomerEmail:   i.CustomerEmail,
		CustomerName:    i.CustomerName,
		Phone:           i.Phone,
		StartTime:       i.StartTime,
		EndTime:         i.EndTime,
		AppointmentDate: i.AppointmentDate,
		Status:          appointment.Status(i.Status),
		Notes:           i.Notes,
		Location:        i.Location,
	}
}

// Client is a DynamoDB-backed implementation of the [appointment.Store]
// interface.
//
// Use [New] to create a Client, [Client.Connect] to initialize the underlying
// DynamoDB connection, and [Client.Init] to validate the table schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

var _ appointment.Store = (*Client)(nil)

// New creates a new Client configured with the given AWS config, table name,
// and optional options. Call [Client.Connect] on the returned client before use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided to [New].
// It must be called before any other Client methods, and must complete before
// the Client is used concurrently.
func (c *Client) Connect() error {
	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid DynamoDB options: %w", err)
	}

	if c.tableName == "" {
		return errors.New("DynamoDB table name cannot be empty")
	}

	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
		return nil
	}

	if c.awsCfg == nil {
		return errors.New("AWS config cannot be nil")
	}

	c.client = dynamodb.NewFromConfig(*c.awsCfg, func(o *dynamodb.Options) {
		if c.opts.endpoint != "" {
			o.BaseEndpoint = aws.String(c.opts.endpoint)
		}
	})

	return nil
}

// Init validates the DynamoDB table schema. It checks that the table exists
// and is active, has the partition key PK and sort key SK, and that the date
// index is present with partition key tenantDateKey, sort key SK and all
// attributes projected.
//
// Pass skipSchemaValidation true to skip all checks and return immediately,
// which is useful when schema validation is managed separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, err)
	}

	if response.Table == nil || len(response.Table.KeySchema) < 1 {
		return fmt.Errorf("table %s has no key schema", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[0].AttributeName) != PartitionKey {
		return fmt.Errorf("table %s has partition key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[0].AttributeName), PartitionKey)
	}

	if len(response.Table.KeySchema) < 2 {
		return fmt.Errorf("table %s has a simple primary key, expected composite", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[1].AttributeName) != SortKey {
		return fmt.Errorf("table %s has sort key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[1].AttributeName), SortKey)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	return verifySecondaryIndex(response.Table, c.opts.dateIndexName, TenantDateKeyAttr, SortKey)
}

// DropAllData deletes every item from the DynamoDB table. It scans the table
// in pages and removes each page using BatchWriteItem with exponential backoff
// for unprocessed items.
//
// This method is intended for use in tests only. Do not call it in production.
func (c *Client) DropAllData(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(c.tableName),
		ProjectionExpression: aws.String(PartitionKey + ", " + SortKey),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		// BatchWriteItem accepts at most 25 requests.
		for batch := range slices.Chunk(output.Items, 25) {
			if err := c.deleteBatch(ctx, batch); err != nil {
				return err
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return nil
}

func (c *Client) deleteBatch(ctx context.Context, batch []map[string]dynamodbtypes.AttributeValue) error {
	requestItems := make([]dynamodbtypes.WriteRequest, 0, len(batch))

	for _, it := range batch {
		requestItems = append(requestItems, dynamodbtypes.WriteRequest{
			DeleteRequest: &dynamodbtypes.DeleteRequest{
				Key: map[string]dynamodbtypes.AttributeValue{
					PartitionKey: it[PartitionKey],
					SortKey:      it[SortKey],
				},
			},
		})
	}

	batchInput := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]dynamodbtypes.WriteRequest{
			c.tableName: requestItems,
		},
	}

	const maxRetries = 5
	backoff := 50 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		batchResult, err := c.client.BatchWriteItem(ctx, batchInput)
		if err != nil {
			return fmt.Errorf("failed to batch delete items from DynamoDB table %s: %w", c.tableName, err)
		}

		if len(batchResult.UnprocessedItems) == 0 {
			return nil
		}

		if attempt == maxRetries {
			return fmt.Errorf("%d unprocessed items after %d retries in DropAllData",
				len(batchResult.UnprocessedItems[c.tableName]), maxRetries)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
		batchInput.RequestItems = batchResult.UnprocessedItems
	}

	return nil
}

// Create writes the appointment at its primary key, replacing any existing
// item with the same key. The item also carries the date index key.
func (c *Client) Create(ctx context.Context, appt *appointment.Appointment) error {
	if appt == nil {
		return errors.New("appointment cannot be nil")
	}

	if appt.TenantID == "" {
		return appointment.ErrMissingTenantID
	}

	pk, err := appointment.CustomerKey(appt.TenantID, appt.CustomerEmail)
	if err != nil {
		return fmt.Errorf("failed to build partition key: %w", err)
	}

	date := appointment.AppointmentDate(appt.StartTime)

	attributes, err := attributevalue.MarshalMap(&item{
		PK:              pk,
		SK:              appointment.AppointmentSortKey(appt.StartTime),
		TenantDateKey:   appointment.TenantDateKey(appt.TenantID, date),
		TenantID:        appt.TenantID,
		CustomerEmail:   appt.CustomerEmail,
		CustomerName:    appt.CustomerName,
		Phone:           appt.Phone,
		StartTime:       appt.StartTime,
		EndTime:         appt.EndTime,
		AppointmentDate: date,
		Status:          string(appt.Status),
		Notes:           appt.Notes,
		Location:        appt.Location,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal appointment: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item:      attributes,
	}

	if _, err = c.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to write appointment to DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// Update sets the patched attributes on the item at the key and returns the
// item as it is after the update. Status is always written and defaults to
// PENDING. No condition is attached, so a missing key yields a new sparse
// item.
func (c *Client) Update(ctx context.Context, tenantID, customerEmail, startTime string, patch appointment.Patch) (*appointment.Appointment, error) {
	if tenantID == "" {
		return nil, appointment.ErrMissingTenantID
	}

	pk, err := appointment.CustomerKey(tenantID, customerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to build partition key: %w", err)
	}

	sets := []string{"#st = :st"}
	names := map[string]string{"#st": StatusAttr}
	values := map[string]dynamodbtypes.AttributeValue{
		":st": &dynamodbtypes.AttributeValueMemberS{Value: string(patch.StatusOrDefault())},
	}

	if patch.EndTime != nil {
		sets = append(sets, "#et = :et")
		names["#et"] = endTimeAttr
		values[":et"] = &dynamodbtypes.AttributeValueMemberS{Value: *patch.EndTime}
	}

	if patch.Notes != nil {
		sets = append(sets, "#n = :n")
		names["#n"] = notesAttr
		values[":n"] = &dynamodbtypes.AttributeValueMemberS{Value: *patch.Notes}
	}

	if patch.Location != nil {
		sets = append(sets, "#loc = :loc")
		names["#loc"] = LocationAttr
		values[":loc"] = &dynamodbtypes.AttributeValueMemberS{Value: *patch.Location}
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 &c.tableName,
		Key:                       primaryKey(pk, appointment.AppointmentSortKey(startTime)),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              dynamodbtypes.ReturnValueAllNew,
	}

	output, err := c.client.UpdateItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment in DynamoDB table %s: %w", c.tableName, err)
	}

	var updated item
	if err := attributevalue.UnmarshalMap(output.Attributes, &updated); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated appointment: %w", err)
	}

	appt := updated.appointment()

	// A sparse item created by this update has no identity attributes.
	if appt.TenantID == "" {
		appt.TenantID = tenantID
	}

	if appt.CustomerEmail == "" {
		appt.CustomerEmail = customerEmail
	}

	if appt.StartTime == "" {
		appt.StartTime = startTime
	}

	return &appt, nil
}

// Delete removes the item at the key. Deleting a missing item is not an error.
func (c *Client) Delete(ctx context.Context, tenantID, customerEmail, startTime string) error {
	if tenantID == "" {
		return appointment.ErrMissingTenantID
	}

	pk, err := appointment.CustomerKey(tenantID, customerEmail)
	if err != nil {
		return fmt.Errorf("failed to build partition key: %w", err)
	}

	input := &dynamodb.DeleteItemInput{
		TableName: &c.tableName,
		Key:       primaryKey(pk, appointment.AppointmentSortKey(startTime)),
	}

	if _, err := c.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete appointment from DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// QueryByDate returns all appointments of the tenant on date, queried from the
// date index and ordered by start time. Returns an empty slice when there are
// none.
func (c *Client) QueryByDate(ctx context.Context, tenantID, date string) ([]appointment.Appointment, error) {
	if tenantID == "" {
		return nil, appointment.ErrMissingTenantID
	}

	queryInput := &dynamodb.QueryInput{
		TableName: &c.tableName,
		IndexName: aws.String(c.opts.dateIndexName),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":tdk": &dynamodbtypes.AttributeValueMemberS{Value: appointment.TenantDateKey(tenantID, date)},
		},
		KeyConditionExpression: aws.String(TenantDateKeyAttr + " = :tdk"),
		ScanIndexForward:       aws.Bool(true),
	}

	appointments := []appointment.Appointment{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output, err := c.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB table %s: %w", c.tableName, err)
		}

		var items []item
		if err := attributevalue.UnmarshalListOfMaps(output.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal appointments: %w", err)
		}

		for i := range items {
			appointments = append(appointments, items[i].appointment())
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		queryInput.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return appointments, nil
}

func verifySecondaryIndex(table *dynamodbtypes.TableDescription, indexName, partitionKey, sortKey string) error {
	for _, index := range table.GlobalSecondaryIndexes {
		if aws.ToString(index.IndexName) != indexName {
			continue
		}

		if len(index.KeySchema) == 0 || aws.ToString(index.KeySchema[0].AttributeName) != partitionKey {
			return fmt.Errorf("global secondary index %s has partition key %s, expected %s", indexName, keyAttributeName(index.KeySchema, 0), partitionKey)
		}

		if len(index.KeySchema) != 2 {
			return fmt.Errorf("global secondary index %s has a simple primary key, expected a composite primary key", indexName)
		}

		if aws.ToString(index.KeySchema[1].AttributeName) != sortKey {
			return fmt.Errorf("global secondary index %s has sort key %s, expected %s", indexName, aws.ToString(index.KeySchema[1].AttributeName), sortKey)
		}

		if index.IndexStatus != dynamodbtypes.IndexStatusActive {
			return fmt.Errorf("global secondary index %s is not active (status: %s)", indexName, index.IndexStatus)
		}

		if index.Projection == nil || index.Projection.ProjectionType != dynamodbtypes.ProjectionTypeAll {
			return fmt.Errorf("global secondary index %s must project all attributes", indexName)
		}

		return nil
	}

	return fmt.Errorf("global secondary index %s not found", indexName)
}

func keyAttributeName(schema []dynamodbtypes.KeySchemaElement, i int) string {
	if i >= len(schema) {
		return ""
	}

	return aws.ToString(schema[i].AttributeName)
}

func primaryKey(pk, sk string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: pk},
		SortKey:      &dynamodbtypes.AttributeValueMemberS{Value: sk},
	}
}
