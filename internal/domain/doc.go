// Package domain models Xanthos hydrological model output and the reference
// data needed to summarise it by basin, country, or grid cell.
//
// # Data Source
//
// Xanthos writes one CSV per output variable. Each row is a 0.5 degree land
// grid cell identified by "id"; every other column is a period code holding
// that cell's value for the period. Files are named with underscore-separated
// tokens, the first being the variable:
//
//	q_km3peryear_<gcm>_<rcp>_<start>_<end>.csv        runoff, km³ per year
//	pet_mmpermth_<gcm>_<rcp>_<start>_<end>.csv        potential ET, mm per month
//	avgchflow_m3persec_<gcm>_<rcp>_<start>_<end>.csv  streamflow, m³/s
//
// # Period Codes
//
// Period codes are zero-padded strings: "1990" for a yearly column or
// "199003" for a monthly one. A dataset never mixes the two widths, so codes
// of one dataset compare correctly as strings. Months are the trailing two
// digits of a 6-digit code.
//
// # Reference Catalog
//
// The reference catalog maps every grid cell to its GCAM basin, its country
// and its surface area in hectares. A basin may straddle several countries
// and a country contains several basins, so both parent lists are sets.
// Dataset rows whose id is not in the catalog are ignored by every
// aggregation.
//
// # Aggregation
//
// Area views (basin, country) first sum cell values per period inside each
// area, then compute the requested statistic across the selected periods. The
// spatial sum always precedes the temporal statistic. The gridded view skips
// the spatial sum and computes the statistic per cell.
//
// # Units
//
// Volumetric (km³) and depth (mm) values convert through the area of the cell
// or summed area of the group:
//
//	mm  = km³ * 1e6 / (hectares / 100)
//	km³ = mm / 1e6 * (hectares / 100)
//
// Flow rate (m³/s) has no conversion path to the other two families.
package domain
