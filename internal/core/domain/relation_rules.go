package domain

const (
	// Articles 1-20 are general/procedural provisions and never count as a
	// crime-statute relation.
	GeneralProvisionMaxArticle = 20

	MinArticleNumber = 1
	MaxArticleNumber = 451

	// WhitelistTolerance widens each canonical article by ±5 when a crime
	// carries a whitelist, covering adjacent paragraphs and amendments.
	WhitelistTolerance = 5
)

// RelationRules filters spurious co-occurrences at extraction time.
type RelationRules struct {
	// Whitelist maps a normalized crime name to its canonical article
	// numbers. A listed crime only accepts articles within tolerance of one
	// of them; unlisted crimes accept any article passing the range checks.
	Whitelist map[string][]int `yaml:"whitelist"`
	// Blacklist holds article numbers known to be invalid in the corpus.
	Blacklist []int `yaml:"blacklist"`
}

// DefaultRelationRules covers the frequent charges of the labeled corpus.
func DefaultRelationRules() RelationRules {
	return RelationRules{
		Whitelist: map[string][]int{
			"盗窃":            {264},
			"抢劫":            {263},
			"诈骗":            {266},
			"合同诈骗":          {224},
			"敲诈勒索":          {274},
			"职务侵占":          {271},
			"故意伤害":          {234},
			"故意杀人":          {232},
			"强奸":            {236},
			"非法拘禁":          {238},
			"聚众斗殴":          {292},
			"寻衅滋事":          {293},
			"交通肇事":          {133},
			"危险驾驶":          {133},
			"走私、贩卖、运输、制造毒品": {347},
		},
	}
}

// AcceptRelation applies the extraction filter for one (crime, article) pair.
func (r RelationRules) AcceptRelation(crime string, article int) bool {
	if article <= GeneralProvisionMaxArticle {
		return false
	}
	if article < MinArticleNumber || article > MaxArticleNumber {
		return false
	}
	for _, banned := range r.Blacklist {
		if article == banned {
			return false
		}
	}
	canonical, listed := r.Whitelist[NormalizeCrime(crime)]
	if !listed {
		return true
	}
	for _, allowed := range canonical {
		if article >= allowed-WhitelistTolerance && article <= allowed+WhitelistTolerance {
			return true
		}
	}
	return false
}
