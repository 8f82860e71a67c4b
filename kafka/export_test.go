package kafka_test

import (
	"context"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	gojson "github.com/goccy/go-json"
	jpdata "github.com/lukeslp/joshua-project-data"
	"github.com/lukeslp/joshua-project-data/kafka"
	"github.com/lukeslp/joshua-project-data/test"
	"github.com/pkg/errors"
)

func enriched(t *testing.T) []*jpdata.Enriched {
	t.Helper()
	cols, err := jpdata.Load(jpdata.Sources{
		PeopleGroups: jpdata.NewSliceSource(
			map[string]interface{}{"PeopleID3": gojson.Number("1"), "ROG3": "IN", "ROL3": "hin"},
			map[string]interface{}{"PeopleID3": gojson.Number("2"), "ROG3": "NP", "ROL3": "hin"},
			map[string]interface{}{"PeopleID3": gojson.Number("3"), "ROG3": "ZZ"},
		),
		Countries: jpdata.NewSliceSource(map[string]interface{}{"ROG3": "IN", "Ctry": "India"}),
		Languages: jpdata.NewSliceSource(map[string]interface{}{"ROL3": "hin", "Language": "Hindi"}),
	})
	test.ErrNil(t, err, "loading")
	idx, err := jpdata.BuildIndexes(cols.Countries, cols.Languages)
	test.ErrNil(t, err, "indexing")
	res, err := jpdata.NewJoiner(idx, jpdata.EmbedReduced).Join(context.Background(), cols.PeopleGroups)
	test.ErrNil(t, err, "joining")
	return res.Records
}

func TestExporter(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	var got []string
	for i := 0; i < 3; i++ {
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var m map[string]interface{}
			if err := gojson.Unmarshal(val, &m); err != nil {
				return err
			}
			if _, ok := m[jpdata.KeyCountryData]; !ok {
				return errors.New("no country_data in message")
			}
			got = append(got, m["ROG3"].(string))
			return nil
		})
	}

	exp := kafka.NewExporter(producer, kafka.OptExpBatchSize(2))
	test.MustBe(t, "joshua_project.enriched", exp.Topic(jpdata.DatasetEnriched))
	w, err := exp.Writer(jpdata.DatasetEnriched)
	test.ErrNil(t, err, "Writer")
	for _, e := range enriched(t) {
		test.ErrNil(t, w.Write(e), "Write")
	}
	test.ErrNil(t, w.Close(), "Close")
	test.ErrNil(t, exp.Commit(), "Commit")
	test.MustBe(t, []string{"IN", "NP", "ZZ"}, got)
}

func TestExporterSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	exp := kafka.NewExporter(producer, kafka.OptExpTopicPrefix("jp"))
	w, err := exp.Writer("unreached")
	test.ErrNil(t, err, "Writer")
	test.ErrNil(t, w.Write(enriched(t)[0]), "Write")
	if err := w.Close(); errors.Cause(err) != sarama.ErrOutOfBrokers {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	test.ErrNil(t, exp.Abort(), "Abort")
}
