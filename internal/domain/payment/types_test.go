package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusinessTypeIsValid(t *testing.T) {
	for _, bt := range AllBusinessTypes {
		assert.True(t, bt.IsValid(), "business type %s", bt)
	}
	assert.False(t, BusinessType("casino").IsValid())
	assert.False(t, BusinessType("").IsValid())
}

func TestPaymentMethodIsValid(t *testing.T) {
	valid := []PaymentMethod{MethodCard, MethodMobileWallet, MethodVoice, MethodQR, MethodNFC, MethodBiometric}
	for _, m := range valid {
		assert.True(t, m.IsValid(), "method %s", m)
	}
	assert.False(t, PaymentMethod("check").IsValid())
}

func TestDeviceTypeSupports(t *testing.T) {
	tests := []struct {
		name   string
		device DeviceType
		method PaymentMethod
		want   bool
	}{
		{name: "smartphone supports nfc", device: DeviceSmartphone, method: MethodNFC, want: true},
		{name: "smartphone supports biometric", device: DeviceSmartphone, method: MethodBiometric, want: true},
		{name: "voice assistant supports voice", device: DeviceVoiceAssistant, method: MethodVoice, want: true},
		{name: "voice assistant rejects qr", device: DeviceVoiceAssistant, method: MethodQR, want: false},
		{name: "iot sensor only does card", device: DeviceIoTSensor, method: MethodCard, want: true},
		{name: "iot sensor rejects biometric", device: DeviceIoTSensor, method: MethodBiometric, want: false},
		{name: "wearable rejects card", device: DeviceWearable, method: MethodCard, want: false},
		{name: "pos terminal supports nfc", device: DevicePOSTerminal, method: MethodNFC, want: true},
		{name: "unknown device supports nothing", device: DeviceType("toaster"), method: MethodCard, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.device.Supports(tt.method))
		})
	}
}

func TestDeviceTypeSupportedMethods(t *testing.T) {
	methods := DeviceIoTSensor.SupportedMethods()
	assert.Equal(t, []PaymentMethod{MethodCard}, methods)

	assert.Len(t, DeviceSmartphone.SupportedMethods(), 5)
	assert.Nil(t, DeviceType("toaster").SupportedMethods())
}
