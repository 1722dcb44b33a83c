package domain

import (
	"github.com/yungbote/commercecrafted-backend/internal/domain/catalog"
	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/domain/reports"
)

// Niches
type Niche = niches.Niche
type NicheProgress = niches.Progress
type AnalysisCategory = niches.Category
type AnalysisRow = niches.AnalysisRow
type AnalysisBase = niches.AnalysisBase
type CompetitionAnalysis = niches.CompetitionAnalysis
type DemandAnalysis = niches.DemandAnalysis
type FinancialAnalysis = niches.FinancialAnalysis
type KeywordAnalysis = niches.KeywordAnalysis
type LaunchStrategy = niches.LaunchStrategy
type ListingOptimization = niches.ListingOptimization
type MarketIntelligence = niches.MarketIntelligence
type OverallAnalysis = niches.OverallAnalysis

// Catalog
type Product = catalog.Product
type ProductKeyword = catalog.ProductKeyword
type CustomerReview = catalog.CustomerReview

// Reports
type AmazonReport = reports.AmazonReport
type SearchTerm = reports.SearchTerm
