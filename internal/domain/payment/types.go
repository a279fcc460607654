package payment

// BusinessType classifies the merchant context of a payment. It drives both
// policy bounds and the specialized fraud rules that apply.
type BusinessType string

const (
	BusinessTypeRetail       BusinessType = "retail"
	BusinessTypeRestaurant   BusinessType = "restaurant"
	BusinessTypeService      BusinessType = "service"
	BusinessTypeSubscription BusinessType = "subscription"
	BusinessTypeGaming       BusinessType = "gaming"
	BusinessTypeIoT          BusinessType = "iot"
)

// AllBusinessTypes lists every business type the platform recognizes.
var AllBusinessTypes = []BusinessType{
	BusinessTypeRetail,
	BusinessTypeRestaurant,
	BusinessTypeService,
	BusinessTypeSubscription,
	BusinessTypeGaming,
	BusinessTypeIoT,
}

func (b BusinessType) IsValid() bool {
	switch b {
	case BusinessTypeRetail, BusinessTypeRestaurant, BusinessTypeService,
		BusinessTypeSubscription, BusinessTypeGaming, BusinessTypeIoT:
		return true
	}
	return false
}

func (b BusinessType) String() string {
	return string(b)
}

// PaymentMethod identifies how the customer pays.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodMobileWallet PaymentMethod = "mobile_wallet"
	MethodVoice        PaymentMethod = "voice"
	MethodQR           PaymentMethod = "qr"
	MethodNFC          PaymentMethod = "nfc"
	MethodBiometric    PaymentMethod = "biometric"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCard, MethodMobileWallet, MethodVoice, MethodQR, MethodNFC, MethodBiometric:
		return true
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

// DeviceType identifies the hardware class a payment originates from.
type DeviceType string

const (
	DeviceSmartphone     DeviceType = "smartphone"
	DeviceTablet         DeviceType = "tablet"
	DevicePOSTerminal    DeviceType = "pos_terminal"
	DeviceVoiceAssistant DeviceType = "voice_assistant"
	DeviceIoTSensor      DeviceType = "iot_sensor"
	DeviceWearable       DeviceType = "wearable"
	DeviceKiosk          DeviceType = "kiosk"
)

// deviceCapabilities is the static device-to-method compatibility table. A
// payment method missing from a device's set is rejected at the policy gate.
var deviceCapabilities = map[DeviceType]map[PaymentMethod]bool{
	DeviceSmartphone: {
		MethodCard:         true,
		MethodMobileWallet: true,
		MethodNFC:          true,
		MethodQR:           true,
		MethodBiometric:    true,
	},
	DeviceTablet: {
		MethodCard:         true,
		MethodMobileWallet: true,
		MethodQR:           true,
	},
	DevicePOSTerminal: {
		MethodCard: true,
		MethodNFC:  true,
		MethodQR:   true,
	},
	DeviceVoiceAssistant: {
		MethodVoice: true,
		MethodCard:  true,
	},
	DeviceIoTSensor: {
		MethodCard: true,
	},
	DeviceWearable: {
		MethodNFC:          true,
		MethodMobileWallet: true,
		MethodBiometric:    true,
	},
	DeviceKiosk: {
		MethodCard: true,
		MethodQR:   true,
		MethodNFC:  true,
	},
}

func (d DeviceType) IsValid() bool {
	_, ok := deviceCapabilities[d]
	return ok
}

func (d DeviceType) String() string {
	return string(d)
}

// Supports reports whether the device class can perform the payment method.
func (d DeviceType) Supports(method PaymentMethod) bool {
	caps, ok := deviceCapabilities[d]
	if !ok {
		return false
	}
	return caps[method]
}

// SupportedMethods returns the payment methods available on the device class.
func (d DeviceType) SupportedMethods() []PaymentMethod {
	caps, ok := deviceCapabilities[d]
	if !ok {
		return nil
	}
	methods := make([]PaymentMethod, 0, len(caps))
	for _, m := range []PaymentMethod{MethodCard, MethodMobileWallet, MethodVoice, MethodQR, MethodNFC, MethodBiometric} {
		if caps[m] {
			methods = append(methods, m)
		}
	}
	return methods
}
