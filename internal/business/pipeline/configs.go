package pipeline

import (
	"github.com/dogspots-bxl/data-importer/internal/platform/config"
	"github.com/dogspots-bxl/data-importer/pkg/model"
)

// BuildPipelines derives the pipeline configurations from the environment
// settings: addresses refresh biannually from the open-geodata providers,
// dog places refresh weekly from the commercial place APIs with stricter
// validation.
func BuildPipelines(cfg config.Config) []model.Pipeline {
	var pipelines []model.Pipeline
	for _, id := range cfg.EnabledPipelines {
		switch id {
		case string(model.DataTypeAddresses):
			pipelines = append(pipelines, addressPipeline(cfg))
		case string(model.DataTypeDogPlaces):
			pipelines = append(pipelines, dogPlacePipeline(cfg))
		}
	}
	return pipelines
}

func addressPipeline(cfg config.Config) model.Pipeline {
	var sources []model.Source
	if cfg.EnableURBIS {
		sources = append(sources, model.Source{
			Provider: model.ProviderURBIS,
			Priority: 1,
			Active:   true,
			Quota:    quota(cfg.URBISDailyQuota, cfg.QuotaWarningThreshold),
			Config: model.SourceConfig{
				BaseURL:   cfg.URBISBaseURL,
				RateLimit: 2,
				TimeoutMs: 60_000,
			},
		})
	}
	if cfg.EnableOSM {
		sources = append(sources, model.Source{
			Provider: model.ProviderOSM,
			Priority: 2,
			Active:   true,
			Quota:    quota(cfg.OSMDailyQuota, cfg.QuotaWarningThreshold),
			Config: model.SourceConfig{
				BaseURL:   cfg.OverpassBaseURL,
				RateLimit: 0.5,
				TimeoutMs: 90_000,
			},
		})
	}

	return model.Pipeline{
		ID:        string(model.DataTypeAddresses),
		DataType:  model.DataTypeAddresses,
		Frequency: FrequencyBiannual,
		Sources:   sources,
		Config: model.PipelineConfig{
			MaxRetries:       3,
			TimeoutMs:        int(cfg.GlobalTimeout.Milliseconds()),
			BatchSize:        400,
			FallbackEnabled:  cfg.EnableFallback,
			DedupeEnabled:    cfg.EnableDedupe,
			QualityThreshold: 70,
			Validation: model.ValidationRules{
				RequiredFields: requiredIf(cfg.EnableValidation, "id", "street", "postalCode"),
				GeoValidation:  cfg.EnableValidation,
			},
		},
	}
}

func dogPlacePipeline(cfg config.Config) model.Pipeline {
	var sources []model.Source
	if cfg.EnableGoogle {
		sources = append(sources, model.Source{
			Provider: model.ProviderGoogle,
			Priority: 1,
			Active:   true,
			Quota:    quota(cfg.GoogleDailyQuota, cfg.QuotaWarningThreshold),
			Config: model.SourceConfig{
				APIKey:    cfg.GooglePlacesAPIKey,
				RateLimit: 10,
				TimeoutMs: 30_000,
			},
		})
	}
	if cfg.EnableFoursquare {
		sources = append(sources, model.Source{
			Provider: model.ProviderFoursquare,
			Priority: 2,
			Active:   true,
			Quota:    quota(cfg.FoursquareDailyQuota, cfg.QuotaWarningThreshold),
			Config: model.SourceConfig{
				APIKey:    cfg.FoursquareAPIKey,
				RateLimit: 5,
				TimeoutMs: 30_000,
			},
		})
	}

	return model.Pipeline{
		ID:        string(model.DataTypeDogPlaces),
		DataType:  model.DataTypeDogPlaces,
		Frequency: FrequencyWeekly,
		Sources:   sources,
		Config: model.PipelineConfig{
			MaxRetries:       3,
			TimeoutMs:        int(cfg.GlobalTimeout.Milliseconds()),
			BatchSize:        400,
			FallbackEnabled:  cfg.EnableFallback,
			DedupeEnabled:    cfg.EnableDedupe,
			QualityThreshold: 80,
			Validation: model.ValidationRules{
				RequiredFields: requiredIf(cfg.EnableValidation, "id", "name", "category", "location"),
				GeoValidation:  cfg.EnableValidation,
			},
		},
	}
}

func quota(dailyLimit int, warningThreshold float64) model.SourceQuota {
	return model.SourceQuota{
		DailyLimit:       dailyLimit,
		WarningThreshold: warningThreshold,
	}
}

func requiredIf(enabled bool, fields ...string) []string {
	if !enabled {
		return nil
	}
	return fields
}
