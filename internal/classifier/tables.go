package classifier

// 服务 UUID → 类别静态映射
// Specificity 为静态特异度排名（表的一部分，不在运行期推断）：
// 同一事件命中多个不同类别时取特异度最高者，持平则判 unknown 并在
// evidence 中列出全部冲突项
type serviceRule struct {
	Category    Category
	Specificity int
	Label       string // 服务名称（dashboard 展示用）
}

var serviceRules = map[string]serviceRule{
	// 健康/穿戴类 GATT 服务
	"180d": {CategoryWearable, 90, "Heart Rate"},
	"1809": {CategoryHealth, 85, "Health Thermometer"},
	"1808": {CategoryHealth, 85, "Glucose"},
	"1810": {CategoryHealth, 85, "Blood Pressure"},
	"181d": {CategoryHealth, 80, "Weight Scale"},
	"183e": {CategoryWearable, 65, "Physical Activity Monitor"},
	"1814": {CategoryWearable, 70, "Running Speed and Cadence"},
	"1816": {CategoryWearable, 70, "Cycling Speed and Cadence"},
	"1818": {CategoryWearable, 70, "Cycling Power"},
	"1826": {CategoryIoT, 50, "Fitness Machine"},

	// 音频分发
	"110a": {CategoryAudio, 75, "Audio Source"},
	"110b": {CategoryAudio, 80, "Audio Sink"},
	"110d": {CategoryAudio, 75, "Advanced Audio Distribution"},
	"111e": {CategoryAudio, 55, "Handsfree"},
	"111f": {CategoryPhone, 60, "Handsfree Audio Gateway"},
	"fe2c": {CategoryAudio, 50, "Google Fast Pair"},
	"febe": {CategoryAudio, 70, "Bose"},

	// 追踪器
	"feed": {CategoryTracker, 85, "Tile"},
	"fd5a": {CategoryTracker, 80, "Samsung SmartTag"},

	// 输入外设
	"1812": {CategoryPeripheral, 60, "Human Interface Device"},
}

// 名称模式 → 类别，按表顺序求值，首个匹配生效
// 顺序即优先级：具体型号在前，泛化词在后（如 "galaxy watch" 必须先于 "galaxy"）
type namePattern struct {
	Pattern  string
	Category Category
}

var namePatterns = []namePattern{
	{"galaxy watch", CategoryWearable},
	{"galaxy buds", CategoryAudio},
	{"galaxy fit", CategoryWearable},
	{"apple watch", CategoryWearable},
	{"airpods", CategoryAudio},
	{"airtag", CategoryTracker},
	{"smarttag", CategoryTracker},
	{"tile", CategoryTracker},
	{"buds", CategoryAudio},
	{"headphone", CategoryAudio},
	{"earbud", CategoryAudio},
	{"soundbar", CategoryAudio},
	{"speaker", CategoryAudio},
	{"iphone", CategoryPhone},
	{"ipad", CategoryTablet},
	{"galaxy tab", CategoryTablet},
	{"galaxy", CategoryPhone},
	{"pixel", CategoryPhone},
	{"macbook", CategoryComputer},
	{"imac", CategoryComputer},
	{"thinkpad", CategoryComputer},
	{"laptop", CategoryComputer},
	{"watch", CategoryWearable},
	{"band", CategoryWearable},
	{"[tv]", CategoryTV},
	{"bravia", CategoryTV},
	{"chromecast", CategoryTV},
	{"roku", CategoryTV},
	{"fire tv", CategoryTV},
	{"keyboard", CategoryPeripheral},
	{"mouse", CategoryPeripheral},
	{"printer", CategoryPeripheral},
	{"esp32", CategoryIoT},
	{"esp-", CategoryIoT},
	{"shelly", CategoryIoT},
	{"tuya", CategoryIoT},
}

// 厂商名关键词 → 类别，仅当前两档都未命中时使用
type vendorRule struct {
	Keyword  string
	Category Category
}

var vendorRules = []vendorRule{
	{"bose", CategoryAudio},
	{"sonos", CategoryAudio},
	{"jbl", CategoryAudio},
	{"harman", CategoryAudio},
	{"sennheiser", CategoryAudio},
	{"jabra", CategoryAudio},
	{"sony", CategoryAudio},
	{"garmin", CategoryWearable},
	{"fitbit", CategoryWearable},
	{"polar electro", CategoryWearable},
	{"whoop", CategoryWearable},
	{"oura", CategoryWearable},
	{"tile", CategoryTracker},
	{"chipolo", CategoryTracker},
	{"tesla", CategoryVehicle},
	{"ford", CategoryVehicle},
	{"bmw", CategoryVehicle},
	{"toyota", CategoryVehicle},
	{"continental automotive", CategoryVehicle},
	{"espressif", CategoryIoT},
	{"tuya", CategoryIoT},
	{"shelly", CategoryIoT},
	{"nordic semiconductor", CategoryIoT},
	{"raspberry", CategoryIoT},
	{"lg electronics", CategoryTV},
	{"intel", CategoryComputer},
	{"dell", CategoryComputer},
	{"lenovo", CategoryComputer},
	{"hewlett packard", CategoryComputer},
	{"logitech", CategoryPeripheral},
	{"microsoft", CategoryPeripheral},
	{"apple", CategoryPhone},
	{"samsung", CategoryPhone},
	{"google", CategoryPhone},
	{"huawei", CategoryPhone},
	{"xiaomi", CategoryPhone},
	{"oneplus", CategoryPhone},
}

// categoryLabels 类别显示名
var categoryLabels = map[Category]string{
	CategoryPhone:      "Phone",
	CategoryTablet:     "Tablet",
	CategoryComputer:   "Computer",
	CategoryAudio:      "Audio",
	CategoryWearable:   "Wearable",
	CategoryHealth:     "Health",
	CategoryTracker:    "Tracker",
	CategoryTV:         "TV / Streaming",
	CategoryVehicle:    "Vehicle",
	CategoryPeripheral: "Peripheral",
	CategoryIoT:        "IoT",
	CategoryUnknown:    "Unknown",
}
